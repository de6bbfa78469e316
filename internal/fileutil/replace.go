package fileutil

import (
	"fmt"
	"os"
)

// ReplaceOutcome reports what happened to the original file during a
// replacement.
type ReplaceOutcome struct {
	// Backup is the path where the original still sits on disk, or
	// "" when it was removed as requested.
	Backup string
	// BackupErr is a non-fatal failure removing the backup. The
	// replacement itself succeeded; the leftover just needs manual
	// cleanup.
	BackupErr error
}

// Replace installs output at dest. When dest collides with source the
// original is first parked at a backup name so a failed move never
// loses data: on error the backup stays on disk and the caller gets
// its path through the outcome. deleteOriginal controls whether the
// original (or its backup) survives a successful replacement.
func Replace(output, source, dest string, deleteOriginal bool) (ReplaceOutcome, error) {
	var outcome ReplaceOutcome

	if dest == source {
		backup := BackupName(source)
		if err := os.Rename(source, backup); err != nil {
			return outcome, fmt.Errorf("park original: %w", err)
		}
		outcome.Backup = backup
	}

	if err := Move(output, dest); err != nil {
		// The original is intact: either untouched at source or
		// parked at the backup path.
		return outcome, fmt.Errorf("install output: %w", err)
	}

	if deleteOriginal {
		victim := outcome.Backup
		if victim == "" {
			victim = source
		}
		if err := os.Remove(victim); err != nil {
			outcome.BackupErr = err
		} else {
			outcome.Backup = ""
		}
	}
	return outcome, nil
}

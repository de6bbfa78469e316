package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	dst := filepath.Join(dir, "dst.mkv")
	writeFile(t, src, "encoded media bytes")

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if readFile(t, dst) != "encoded media bytes" {
		t.Fatal("content mismatch")
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error")
	}
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staging.mkv")
	dst := filepath.Join(dir, "library.mkv")
	writeFile(t, src, "payload")

	if err := Move(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("source should be gone after move")
	}
	if readFile(t, dst) != "payload" {
		t.Fatal("content mismatch")
	}
}

func TestBackupName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")

	if got := BackupName(path); got != path+".bak" {
		t.Fatalf("first backup = %q", got)
	}
	writeFile(t, path+".bak", "old")
	if got := BackupName(path); got != path+".bak1" {
		t.Fatalf("second backup = %q", got)
	}
	writeFile(t, path+".bak1", "older")
	if got := BackupName(path); got != path+".bak2" {
		t.Fatalf("third backup = %q", got)
	}
}

func TestReplaceInPlace(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "movie.mkv")
	output := filepath.Join(dir, "staging.mkv")
	writeFile(t, source, "original")
	writeFile(t, output, "re-encoded")

	outcome, err := Replace(output, source, source, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Backup != "" || outcome.BackupErr != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if readFile(t, source) != "re-encoded" {
		t.Fatal("destination not replaced")
	}
	if _, err := os.Stat(source + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("backup should be removed on success")
	}
}

func TestReplaceDifferentDestination(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "movie.avi")
	dest := filepath.Join(dir, "movie.mkv")
	output := filepath.Join(dir, "staging.mkv")
	writeFile(t, source, "original")
	writeFile(t, output, "re-encoded")

	outcome, err := Replace(output, source, dest, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Backup != "" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if _, err := os.Stat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("original should be deleted")
	}
	if readFile(t, dest) != "re-encoded" {
		t.Fatal("destination missing")
	}
}

func TestReplaceKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "movie.avi")
	dest := filepath.Join(dir, "movie.mkv")
	output := filepath.Join(dir, "staging.mkv")
	writeFile(t, source, "original")
	writeFile(t, output, "re-encoded")

	if _, err := Replace(output, source, dest, false); err != nil {
		t.Fatal(err)
	}
	if readFile(t, source) != "original" {
		t.Fatal("original must survive when deletion is off")
	}
	if readFile(t, dest) != "re-encoded" {
		t.Fatal("destination missing")
	}
}

func TestReplaceFailureKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "movie.mkv")
	output := filepath.Join(dir, "staging.mkv")
	writeFile(t, source, "original")
	// No output file: the install step must fail.

	outcome, err := Replace(output, source, source, true)
	if err == nil {
		t.Fatal("expected install failure")
	}
	if outcome.Backup == "" {
		t.Fatal("backup path must be reported on failure")
	}
	if readFile(t, outcome.Backup) != "original" {
		t.Fatal("backup must preserve the original bytes")
	}
}

// Package fileutil holds the filesystem primitives behind source
// replacement: verified copies, cross-filesystem moves, and the
// backup flow that keeps the original recoverable until the new file
// is in place.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CopyFile streams src to dst with SHA256 and size verification,
// removing dst on mismatch. Media files are large enough that a
// silent short write would otherwise go unnoticed until playback.
func CopyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// Move renames src to dst, falling back to a verified copy plus
// delete when the rename fails (staging and library commonly live on
// different filesystems).
func Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove after copy: %w", err)
	}
	return nil
}

// BackupName returns an unused backup path derived from path,
// appending a counter when earlier backups are still lying around.
func BackupName(path string) string {
	candidate := path + ".bak"
	for counter := 1; ; counter++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = path + ".bak" + strconv.Itoa(counter)
	}
}

//go:build linux || darwin

package preflight

import "golang.org/x/sys/unix"

// diskFreeBytes returns the bytes available to unprivileged users on
// the filesystem holding path.
func diskFreeBytes(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

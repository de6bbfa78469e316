//go:build !linux && !darwin

package preflight

import "errors"

func diskFreeBytes(path string) (int64, error) {
	return 0, errors.New("free space detection not supported on this platform")
}

//go:build linux

package linesort

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// reserveFile allocates size bytes of disk for file so that a full disk
// fails the merge before any output is written. Filesystems without
// fallocate support (some network filesystems) are left unreserved. The
// file size grows to size; the caller truncates it when done.
func reserveFile(file *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	err := unix.Fallocate(int(file.Fd()), 0, 0, size)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return nil
	}
	return err
}

//go:build linux

package linesort

import "golang.org/x/sys/unix"

// fadviseSequential asks for aggressive read-ahead on the whole file. Used
// for the source, chunk cursors and verified files. Hints are best-effort.
func fadviseSequential(fd int) {
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_SEQUENTIAL)
}

// fadviseDontNeed drops a fully consumed file from the page cache so merge
// read-ahead is not competing with pages that will never be read again.
func fadviseDontNeed(fd int) {
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_DONTNEED)
}

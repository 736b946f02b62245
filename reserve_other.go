//go:build !linux && !darwin

package linesort

import "os"

// reserveFile sizes file to size bytes. This sets the file size but may not
// reserve actual disk blocks on all filesystems.
func reserveFile(file *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return file.Truncate(size)
}

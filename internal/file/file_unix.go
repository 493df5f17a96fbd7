//go:build !windows

// Package file opens files so that the rotation rename can proceed even
// while another process holds the active file open.
package file

import "os"

// OpenFile opens the named file
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

//go:build windows

package file

import (
	"os"

	"github.com/kei2100/filesharedelete"
)

// OpenFile opens the named file with FILE_SHARE_DELETE, so rotation can
// rename the active file out from under readers tailing it.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return filesharedelete.OpenFile(name, flag, perm)
}

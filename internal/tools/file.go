package tools

import (
	"errors"
	"io/fs"
	"os"
)

// FileExists reports whether path exists. Errors other than not-exist count
// as existing so that caller fails later with a meaningful error.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !errors.Is(err, fs.ErrNotExist)
}

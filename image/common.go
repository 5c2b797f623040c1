// go-common local proxy functions

package image

import (
	"os"

	"github.com/rstms/go-common"
)

func Fatal(err error) error {
	return common.Fatal(err)
}

func Fatalf(format string, args ...interface{}) error {
	return common.Fatalf(format, args...)
}

func IsFile(filename string) bool {
	return common.IsFile(filename)
}

// hostFileSize returns the size of a regular host file.
func hostFileSize(filename string) (int64, error) {
	if !IsFile(filename) {
		return 0, Fatalf("not a file: %s", filename)
	}
	info, err := os.Stat(filename)
	if err != nil {
		return 0, Fatal(err)
	}
	return info.Size(), nil
}

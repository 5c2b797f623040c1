// go-common local proxy functions

package fat

import (
	"github.com/rstms/go-common"
	log "github.com/sirupsen/logrus"
)

func Fatal(err error) error {
	return common.Fatal(err)
}

func Fatalf(format string, args ...interface{}) error {
	return common.Fatalf(format, args...)
}

var logger = log.StandardLogger()

// SetLogger replaces the logger used for debug tracing.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.StandardLogger()
	}
	logger = l
}

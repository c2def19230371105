package feeder

import (
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the logger used by transports and the driver.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}

func transportLog(kind string) logrus.FieldLogger {
	return logger.WithField("transport", kind)
}

package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the process logger: JSON lines when prodLike, readable text
// otherwise. An unknown level falls back to info.
func New(level string, prodLike bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if prodLike {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

package database

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type Option func(*gorm.Config)

// Silent turns off gorm's own SQL logging.
func Silent() Option {
	return func(c *gorm.Config) {
		c.Logger = logger.Default.LogMode(logger.Silent)
	}
}

func Connect(dsn string, log *logrus.Logger, opts ...Option) (*gorm.DB, error) {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	cfg := &gorm.Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Info("connecting to PostgreSQL")
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	log.WithField("dsn", dsn).Info("using SQLite for sessions")

	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
}

package main

import (
	"context"
	"time"

	"homestay/internal/config"
	"homestay/internal/database"
	"homestay/internal/pkg/logging"
	"homestay/internal/repository"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.IsProdLike())

	db, err := database.Connect(cfg.SessionDatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := repository.NewSessionRepository(db).DeleteExpired(ctx, time.Now())
	if err != nil {
		log.WithError(err).Fatal("cleanup stored_sessions failed")
	}
	log.WithField("stored_sessions", removed).Info("session cleanup completed")
}

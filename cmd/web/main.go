package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homestay/internal/config"
	"homestay/internal/database"
	"homestay/internal/pkg/logging"
	"homestay/internal/repository"
	"homestay/internal/server"
	"homestay/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; the environment wins
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.IsProdLike())
	if envErr != nil {
		log.Debug(".env not loaded, using process environment")
	}
	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.SessionDatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("session database connect failed")
	}
	sessions := repository.NewSessionRepository(db)
	if err := sessions.Migrate(); err != nil {
		log.WithError(err).Fatal("session table migration failed")
	}

	srv := server.New(cfg, server.Options{
		Durable: session.NewDBTier(sessions, session.NewSealer(cfg.SessionSecret), cfg.SessionTTL, log),
		Scoped:  session.NewMemoryTier(),
	}, log)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "api": cfg.APIURL, "env": cfg.AppEnv}).Info("homestay web listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("homestay web stopped")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := db.Migrate(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.WithField("applied", n).Info("migrations up to date")
}

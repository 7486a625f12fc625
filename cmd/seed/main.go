package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/bootstrap"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/seed"
	"github.com/groundwork-cm/groundwork-backend/internal/storage"
)

func main() {
	path := flag.String("file", "seed.yaml", "fixture file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fh, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open fixture: %v", err)
	}
	fixture, err := seed.Load(fh)
	fh.Close()
	if err != nil {
		log.Fatal(err)
	}

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	services := bootstrap.NewServices(database, nil, storage.Disabled{}, cfg.Tenancy)
	seeder := &seed.Seeder{
		Tenants:   services.Tenants,
		Projects:  services.Projects,
		Employees: services.Employees,
	}
	res, err := seeder.Apply(ctx, fixture)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.WithFields(log.Fields{
		"tenants": res.Tenants, "projects": res.Projects, "employees": res.Employees,
	}).Info("seed complete")
}

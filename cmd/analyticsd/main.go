package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmcfarland/usagedeck/internal/app"
	"github.com/tmcfarland/usagedeck/internal/config"
	"github.com/tmcfarland/usagedeck/internal/httpserver"
	"github.com/tmcfarland/usagedeck/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbPool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbPool.Close()

	container, err := app.NewContainer(ctx, cfg, dbPool)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	if err := server.Listen(ctx); err != nil && err != context.Canceled {
		log.Fatalf("server stopped: %v", err)
	}
}

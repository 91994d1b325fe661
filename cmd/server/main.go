package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/duelgrid/backend/internal/config"
	"github.com/duelgrid/backend/internal/game"
	"github.com/duelgrid/backend/internal/ws"
	"github.com/duelgrid/backend/internal/zone"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to config file")
	port := pflag.Int("port", 0, "override server port")
	dev := pflag.Bool("dev", false, "development mode (verbose console logging)")
	pflag.Parse()

	var (
		log *zap.Logger
		err error
	)
	if *dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	zoneCfg := zone.Config{
		StartHP:      cfg.Zone.StartHP,
		StrikeDamage: cfg.Zone.StrikeDamage,
		RoundLimit:   cfg.Zone.RoundLimit,
		BotInterval:  cfg.Zone.BotInterval,
	}
	manager := game.NewManager(zone.Factory(zoneCfg, log.Named("zone")), log.Named("game"))

	server := ws.NewServer(cfg, manager, log.Named("ws"))
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
		manager.Close()
	}()

	log.Info("server listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}

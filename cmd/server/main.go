package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"serp-go/internal/bootstrap"
	"serp-go/internal/config"
	"serp-go/internal/handler"
	"serp-go/internal/service"
	"serp-go/pkg/logger"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "config/dev.yaml", "Configuration file path")
	flag.BoolVar(&app.debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if err := app.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func (app *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewManager().Load(app.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if app.debug {
		cfg.Logger.Level = "debug"
	}
	logger.SetLogger(logger.New(cfg.Logger))
	lg := logger.GetLogger().WithField("component", "server")

	components, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			lg.WithError(err).Warn("Failed to close resources cleanly")
		}
	}()

	if err := components.Pool.Start(); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}

	var cacheStats service.CacheStatsProvider
	if components.Cache != nil {
		cacheStats = components.Cache
	}
	server := handler.NewApp(handler.NewController(components.Service, components.Pool, cacheStats))
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	serveErr := make(chan error, 1)
	go func() {
		lg.WithField("addr", addr).Info("HTTP server listening")
		serveErr <- server.Listen(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		lg.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			lg.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		lg.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	// Running analyses see a cancelled context and are marked failed
	if err := components.Pool.Stop(); err != nil {
		lg.WithError(err).Warn("Worker pool shutdown incomplete")
	}

	lg.Info("Server stopped")
	return nil
}

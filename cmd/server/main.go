package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/vidrelay/internal/api"
	"github.com/iconidentify/vidrelay/internal/api/handler"
	"github.com/iconidentify/vidrelay/internal/config"
	"github.com/iconidentify/vidrelay/internal/httpclient"
	"github.com/iconidentify/vidrelay/internal/logging"
	"github.com/iconidentify/vidrelay/internal/origin"
	"github.com/iconidentify/vidrelay/internal/resolver"
	"github.com/iconidentify/vidrelay/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	envPath := flag.String("env", ".env", "Path to .env file (ignored if missing)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidrelay %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting vidrelay",
		"version", Version,
		"build_time", BuildTime,
		"resolver", cfg.Resolver.BaseURL,
		"auth", cfg.Server.APIKey != "",
	)

	// Initialize dependencies
	client := httpclient.New(cfg.HTTP)
	prober := origin.NewProber(client, cfg.Origin, logger)
	relay := origin.NewRelay(client, cfg.Origin, logger)
	forwarder := resolver.NewForwarder(client, cfg.Resolver, logger)

	// Initialize services
	proxySvc := service.NewProxyService(prober, relay, cfg.Origin, logger)

	// Initialize handlers
	proxyHandler := handler.NewProxyHandler(proxySvc, logger)
	parseHandler := handler.NewParseHandler(forwarder, logger)
	healthHandler := handler.NewHealthHandler(forwarder, Version)

	// Setup router
	router := api.NewRouter(proxyHandler, parseHandler, healthHandler, cfg.Server.APIKey)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}

	// Graceful shutdown; in-flight relays are bounded by the stream timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Origin.StreamTimeout+5*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

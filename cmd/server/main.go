// Package main is the entry point for the Rental Manager server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rental-manager/backend/internal/api"
	"github.com/rental-manager/backend/internal/calendar"
	"github.com/rental-manager/backend/internal/config"
	"github.com/rental-manager/backend/internal/storage"
	"github.com/rental-manager/backend/internal/websocket"
)

// version is overridden at build time with -ldflags "-X main.version=x.y.z",
// or at runtime through the VERSION environment variable.
var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a config file (yaml, json or toml)")
	healthCheck := flag.Bool("health-check", false, "Probe /api/health on the configured address and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *healthCheck {
		if err := probeHealth(cfg.Server.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		return
	}

	if v := os.Getenv("VERSION"); v != "" {
		version = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Rental Manager exited: %v", err)
	}
}

// run serves until ctx is cancelled, then stops the scheduler and drains HTTP.
func run(ctx context.Context, cfg *config.Config) error {
	log.Printf("Starting Rental Manager %s with %s storage", version, cfg.Database.Driver)

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	syncService := calendar.NewSyncService(
		storage.NewPropertyRepository(db),
		storage.NewCalendarRepository(db),
		storage.NewBookingRepository(db),
		calendar.NewFetcher(calendar.FetcherConfig{
			Timeout:           cfg.Calendar.FetchTimeout,
			UserAgent:         cfg.Calendar.UserAgent,
			RequestsPerSecond: cfg.Calendar.FetchRate,
		}),
	)
	scheduler := calendar.NewScheduler(syncService, hub, cfg.Calendar.SyncInterval)

	if !cfg.AuthEnabled() {
		log.Println("Warning: auth.jwt_secret is empty, API authentication is disabled")
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Services{
			DB:        db,
			Hub:       hub,
			Sync:      syncService,
			Scheduler: scheduler,
			JWTSecret: cfg.Auth.JWTSecret,
			StaticDir: cfg.Server.StaticDir,
			Version:   version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute, // manual syncs answer after the fetch
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.Calendar.SchedulerEnabled {
		// Start blocks on the first pass; keep it off the startup path.
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				log.Printf("Warning: calendar scheduler did not start: %v", err)
			}
		}()
	} else {
		log.Println("Calendar scheduler disabled by configuration")
	}

	select {
	case err := <-serveErr:
		scheduler.Stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// probeHealth is the container HEALTHCHECK entry point.
func probeHealth(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parsing server address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

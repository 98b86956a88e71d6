package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/neexbeast/flight-search/internal/api"
	"github.com/neexbeast/flight-search/internal/cache"
	"github.com/neexbeast/flight-search/internal/flight"
	"github.com/neexbeast/flight-search/internal/kiwi"
)

type config struct {
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://redis:6379"`
	KiwiAPIKey    string        `env:"APIKEY,required"`
	Port          string        `env:"PORT" envDefault:"8080"`
	FlightTTL     time.Duration `env:"FLIGHT_CACHE_TTL" envDefault:"24h"`
	AirportTTL    time.Duration `env:"AIRPORT_CACHE_TTL" envDefault:"72h"`
	CheckPeriod   time.Duration `env:"CACHE_CHECK_PERIOD" envDefault:"60s"`
	ReconnectWait time.Duration `env:"CACHE_RECONNECT_WAIT" envDefault:"10s"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One Redis client per cache namespace: flights in DB 0, airports in DB 1.
	flightsClient, err := cache.NewClient(cfg.RedisURL, cache.FlightsDB)
	if err != nil {
		return fmt.Errorf("creating flights redis client: %w", err)
	}
	defer func() { _ = flightsClient.Close() }()

	airportsClient, err := cache.NewClient(cfg.RedisURL, cache.AirportsDB)
	if err != nil {
		return fmt.Errorf("creating airports redis client: %w", err)
	}
	defer func() { _ = airportsClient.Close() }()

	storeOpts := []cache.Option{
		cache.WithCheckPeriod(cfg.CheckPeriod),
		cache.WithReconnectWait(cfg.ReconnectWait),
	}
	flightsStore := cache.NewStore(flightsClient, cfg.FlightTTL, log, storeOpts...)
	airportsStore := cache.NewStore(airportsClient, cfg.AirportTTL, log, storeOpts...)

	// Startup is best-effort: an unreachable cache degrades searches, it does
	// not stop the process. The checkers recover the connection in background
	// and are cancelled with ctx on shutdown.
	flightsStore.Connect(ctx)
	airportsStore.Connect(ctx)
	go flightsStore.Run(ctx)
	go airportsStore.Run(ctx)

	// Wire dependencies.
	searcher := flight.NewSearcher(
		&kiwiGateway{client: kiwi.NewClient(cfg.KiwiAPIKey)},
		cache.NewAirportCache(airportsStore),
		cache.NewFlightCache(flightsStore),
		log,
	)
	handlers := api.NewHandlers(searcher, log)
	router := api.NewRouter(handlers, flightsStore, airportsStore)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// kiwiGateway adapts kiwi.Client to the flight.Gateway interface.
type kiwiGateway struct {
	client *kiwi.Client
}

func (g *kiwiGateway) OpenSession() flight.Session {
	return g.client.OpenSession()
}

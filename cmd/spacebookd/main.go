package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"spacebooking-backend/config"
	"spacebooking-backend/internal/api"
	"spacebooking-backend/internal/availability"
	"spacebooking-backend/internal/booking"
	"spacebooking-backend/internal/catalog"
	"spacebooking-backend/internal/credit"
	"spacebooking-backend/internal/db"
	"spacebooking-backend/internal/events"
	"spacebooking-backend/internal/logging"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/obs"
	"spacebooking-backend/internal/party"
	"spacebooking-backend/internal/pricing"
	"spacebooking-backend/internal/registry"
	"spacebooking-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("configuration loaded successfully from %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatalf("failed to initialize tracing: %v", err)
	}

	blocking, err := blockingStatuses(cfg.Booking.BlockingStatuses)
	if err != nil {
		logger.Fatalf("invalid booking.blocking_statuses: %v", err)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, cfg.Booking.BlockingStatuses, logger)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Info("database initialized successfully")

	appStore := store.NewGormStore(gormDB)
	resources := registry.New(appStore, time.Duration(cfg.Registry.CacheTTLSeconds)*time.Second, logger)

	if cfg.Catalog.Path != "" {
		n, err := catalog.NewService(resources, cfg.Booking.DefaultCurrency, logger).Sync(ctx, cfg.Catalog.Path)
		if err != nil {
			logger.Fatalf("failed to sync resource catalog: %v", err)
		}
		logger.Infof("resource catalog synced: %d resources", n)
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		logger.Fatalf("failed to connect event publisher: %v", err)
	}
	defer publisher.Close()

	directory := party.NewDirectory(appStore)
	ledger := credit.New(appStore, logger)
	avail := availability.New(appStore, cfg.Booking.Location, blocking)
	prices := pricing.New(directory, ledger, cfg.Booking.Location, cfg.Pricing.HourlyIncrementMinutes, cfg.Booking.DefaultCurrency)
	manager := booking.NewManager(booking.Deps{
		Store:        appStore,
		Resources:    resources,
		Parties:      directory,
		Availability: avail,
		Pricing:      prices,
		Credits:      ledger,
		Events:       publisher,
		Codes:        booking.UUIDCodes(cfg.Booking.CodePrefix),
		Log:          logger,
	}, booking.Config{
		AllowPastBookings:  cfg.Booking.AllowPastBookings,
		CancellationWindow: cfg.Booking.CancellationWindow,
		Location:           cfg.Booking.Location,
	})

	handler := api.NewHandler(api.Services{
		Resources:    resources,
		Availability: avail,
		Pricing:      prices,
		Bookings:     manager,
		Credits:      ledger,
	}, cfg.Booking.Location, cfg.Booking.DefaultSlotMinutes, logger)

	// Initialize router
	router := api.NewRouter(handler, cfg.Server, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server Shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Errorf("tracer shutdown: %v", err)
	}

	logger.Info("Server gracefully stopped")
}

func blockingStatuses(raw []string) ([]model.BookingStatus, error) {
	out := make([]model.BookingStatus, 0, len(raw))
	for _, s := range raw {
		status := model.BookingStatus(s)
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		out = append(out, status)
	}
	return out, nil
}

func newPublisher(cfg config.EventsConfig, logger *logrus.Logger) (events.Publisher, error) {
	if !cfg.Enabled {
		logger.Info("event publishing disabled")
		return events.Nop{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	logger.Infof("publishing booking events to exchange %q", cfg.Exchange)
	return p, nil
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the car rental ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional), config file and flags
  2. Build the logrus logger
  3. Open the SQLite store (schema migrated on open)
  4. Create the engine and initialize the platform admin on first start
  5. Seed a fleet file if given
  6. Start the overdue scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database
  -fleet   JSON fleet file listed for the admin on startup; ignored once
           the database holds any car

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/rental.db"
  ./server -config=config.yaml -port=3000
  RENTAL_JWT_SECRET=s3cret ./server -db=":memory:" -fleet=fleet.json

SEE ALSO:
  - config/config.go: configuration and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/warp/rental-engine/api"
	"github.com/warp/rental-engine/config"
	"github.com/warp/rental-engine/factory"
	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/rental"
	"github.com/warp/rental-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	fleetPath := flag.String("fleet", "", "JSON fleet file to seed on startup")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger := cfg.NewLogger()
	log := logrus.NewEntry(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	engine := rental.New(store,
		rental.WithLogger(log),
		rental.WithReturnPolicy(cfg.ReturnPolicy()),
	)

	ctx := context.Background()
	admin := cfg.AdminAddress()
	if err := engine.Initialize(ctx, admin); err != nil && !errors.Is(err, ledger.ErrAlreadyInitialized) {
		log.WithError(err).Fatal("Failed to initialize platform")
	}

	if *fleetPath != "" {
		n, seeded, err := seedFleet(ctx, engine, admin, *fleetPath)
		if err != nil {
			log.WithError(err).Fatal("Failed to seed fleet")
		}
		if seeded {
			log.WithField("cars", n).Info("Fleet seeded")
		} else {
			log.WithField("fleet", *fleetPath).Info("Cars already listed, fleet not seeded")
		}
	}

	handler := api.NewHandler(engine, api.HandlerConfig{
		Admin:     admin,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    log,
	})
	if !handler.Identity.TokensRequired() {
		log.Warnf("No auth.jwt_secret set: trusting the %s header", api.CallerHeader)
	}

	if cfg.Scheduler.Enabled {
		if err := handler.Overdue.Start(cfg.Scheduler.OverdueScan); err != nil {
			log.WithError(err).Fatal("Failed to start scheduler")
		}
		defer handler.Overdue.Stop()
	}

	router := api.NewRouter(handler, cfg.Server.AllowedOrigins...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":          cfg.Server.Port,
			"db":            cfg.Database.Path,
			"return_policy": cfg.ReturnPolicy(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}

// seedFleet reads and parses the fleet file at path and seeds it into an
// empty ledger. It reports how many cars were listed and whether seeding
// happened at all.
func seedFleet(ctx context.Context, engine *rental.Engine, owner ledger.Address, path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read fleet file: %w", err)
	}
	fleet, err := factory.ParseFleet(string(data))
	if err != nil {
		return 0, false, err
	}
	ids, seeded, err := factory.SeedEmpty(ctx, engine, owner, fleet)
	return len(ids), seeded, err
}

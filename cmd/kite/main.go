// Kite - Typed constraint translation and transactional audit trails.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kitedata/kite/internal/api"
	"github.com/kitedata/kite/internal/domain"
	"github.com/kitedata/kite/internal/repository"
	"github.com/kitedata/kite/internal/session"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KITE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kite",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()

	slog.Info("configuration loaded",
		"driver", cfg.Repository.Driver,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open the database and run migrations
	db, err := repository.Open(cfg.Repository)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "driver", cfg.Repository.Driver)

	// Wire the session factory: catalog, translator and audit policy
	factory, err := session.NewFactory(db, cfg.Repository.Driver)
	if err != nil {
		slog.Error("failed to create session factory", "error", err)
		os.Exit(1)
	}

	// Users carry no audit trail by default; opt them in for deletes so
	// removals stay accounted for.
	factory.Resolver().Register(domain.User{}, domain.ActionDelete)

	if err := factory.Initialize(ctx); err != nil {
		slog.Error("failed to load constraint catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("constraint catalog loaded", "constraints", len(factory.Constraints()))

	// Initialize Server
	srv := api.NewServer(cfg.Server, factory, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kite is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kite shutdown complete")
}

// loadConfig builds the configuration from defaults and environment
// overrides.
func loadConfig() *domain.Config {
	var cfg *domain.Config
	if os.Getenv("KITE_DRIVER") == "postgres" {
		cfg = domain.PostgresConfig()
		if v := os.Getenv("KITE_PG_HOST"); v != "" {
			cfg.Repository.PostgresHost = v
		}
		if v := os.Getenv("KITE_PG_PORT"); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Repository.PostgresPort = port
			}
		}
		if v := os.Getenv("KITE_PG_USER"); v != "" {
			cfg.Repository.PostgresUser = v
		}
		if v := os.Getenv("KITE_PG_PASSWORD"); v != "" {
			cfg.Repository.PostgresPassword = v
		}
		if v := os.Getenv("KITE_PG_DB"); v != "" {
			cfg.Repository.PostgresDB = v
		}
	} else {
		cfg = domain.DefaultConfig()
		if v := os.Getenv("KITE_DB_PATH"); v != "" {
			cfg.Repository.SQLitePath = v
		}
	}

	if v := os.Getenv("KITE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KITE_HOST"); v != "" {
		cfg.Server.Host = v
	}

	return cfg
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Printf("  Kite %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Driver:   %s\n", cfg.Repository.Driver)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET    /health           - Health check")
	fmt.Println("    GET    /ready            - Readiness check")
	fmt.Println("    GET    /constraints      - Loaded constraint metadata")
	fmt.Println("    GET    /audit            - Audit trail for one entity")
	fmt.Println("    POST   /companies        - Create a company")
	fmt.Println("    GET    /companies/{id}   - Get a company")
	fmt.Println("    PUT    /companies/{id}   - Update a company")
	fmt.Println("    DELETE /companies/{id}   - Delete a company")
	fmt.Println()
}

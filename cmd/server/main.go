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
	"strings"
	"syscall"

	goversion "github.com/caarlos0/go-version"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/menusync/internal/auth"
	"github.com/JonMunkholm/menusync/internal/config"
	"github.com/JonMunkholm/menusync/internal/core"
	"github.com/JonMunkholm/menusync/internal/database/postgres"
	"github.com/JonMunkholm/menusync/internal/database/sqlite"
	"github.com/JonMunkholm/menusync/internal/events"
	"github.com/JonMunkholm/menusync/internal/logging"
	"github.com/JonMunkholm/menusync/internal/web"
)

var (
	version   = "dev"
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""

	showVersion = flag.Bool("version", false, "Print version information and exit")
	migrateOnly = flag.Bool("migrate", false, "Apply the database schema and exit")
)

// store is what main needs from either backend.
type store interface {
	core.Store
	Migrate(ctx context.Context) error
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(buildVersion().String())
		return
	}

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"version", version,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"sync_mode", cfg.Sync.Mode,
		"sync_max_concurrent", cfg.Sync.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"events_enabled", cfg.Events.Enabled(),
	)

	ctx := context.Background()
	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate || *migrateOnly {
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		slog.Info("schema applied")
		if *migrateOnly {
			return
		}
	}

	service := core.NewService(db, cfg.Sync)

	publisher, closePublisher := events.New(cfg.Events)
	defer func() {
		if err := closePublisher(); err != nil {
			slog.Warn("failed to close event publisher", "error", err)
		}
	}()
	service.SetPublisher(publisher)

	var opts []web.Option
	if cfg.Security.BearerEnabled() {
		validator, err := auth.NewJWTValidator(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey)
		if err != nil {
			slog.Error("failed to configure bearer auth", "error", err)
			os.Exit(1)
		}
		opts = append(opts, web.WithTokenValidator(validator))
	}

	server := web.NewServer(service, cfg, opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for batches to complete", "active", status.Active)
		}
		if err := service.WaitForBatches(shutdownCtx); err != nil {
			slog.Warn("batches did not complete in time", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store, error) {
	if strings.EqualFold(cfg.Driver, "sqlite") {
		s, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func buildVersion() goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("menusync", "Batch menu and item synchronization API", "https://github.com/JonMunkholm/menusync"),
		func(i *goversion.Info) {
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}

// Command telemetryctl manages stations and telemetry files: import, dry-run
// validation, export and mock data generation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/glacier-telemetry/internal/adapter/postgres"
	"github.com/couchcryptid/glacier-telemetry/internal/config"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "telemetryctl",
	Short: "Glacier ablation telemetry tooling",
	Long: `telemetryctl imports raw ablation sensor files into the record store,
validates them without writing, exports station history as CSV and
generates synthetic telemetry for fixtures.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the configuration and logger shared by commands.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: observability.NewLoggerTo(os.Stderr, cfg)}, nil
}

// openStore connects to the record store and applies the schema.
func (e *env) openStore(ctx context.Context) (*postgres.Store, func(), error) {
	db, err := postgres.Open(ctx, e.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.New(db), func() { _ = db.Close() }, nil
}

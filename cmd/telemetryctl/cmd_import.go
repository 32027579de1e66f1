package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/ingest"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
	"github.com/couchcryptid/glacier-telemetry/internal/quality"
)

var importCmd = &cobra.Command{
	Use:   "import --site CODE FILE...",
	Short: "Ingest telemetry files into the record store",
	Long: `Parse, normalize and quality-check each file and upsert the readings
for the given station. Readings already stored are skipped, so files may be
re-imported safely.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("site", "", "station code (required)")
	importCmd.Flags().Float64("utc-offset", 0, "override the station's UTC offset in hours")
	_ = importCmd.MarkFlagRequired("site")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	store, closeStore, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	site, _ := cmd.Flags().GetString("site")
	st, err := store.Station(ctx, site)
	if err != nil {
		return fmt.Errorf("station %q: %w", site, err)
	}

	opts := ingest.Options{Retries: e.cfg.IngestRetries}
	if cmd.Flags().Changed("utc-offset") {
		offset, _ := cmd.Flags().GetFloat64("utc-offset")
		opts.Zone = time.FixedZone("override", int(offset*3600))
	}
	c := ingest.NewController(store, domain.NewNormalizer(e.cfg.NullToken, nil),
		quality.NewEvaluator(store, e.cfg.Quality), e.logger, observability.NewMetrics(), opts)

	return ingestFiles(cmd, c, st, args)
}

// ingestFiles runs each file through c and prints one JSON summary per file.
func ingestFiles(cmd *cobra.Command, c *ingest.Controller, st domain.Station, paths []string) error {
	failed, err := writeSummaries(cmd.OutOrStdout(), paths, func(path string) (ingest.Summary, error) {
		return c.IngestFile(cmd.Context(), st, path)
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d lines failed; see log for details\n", failed)
	}
	return nil
}

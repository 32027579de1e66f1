package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

var exportCmd = &cobra.Command{
	Use:   "export --site CODE",
	Short: "Write a station's full history as CSV",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("site", "", "station code (required)")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("site")
}

func runExport(cmd *cobra.Command, _ []string) error {
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
		return err
	}
	obs, err := store.Filter(ctx, st.Code, domain.TimeRange{}, nil)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := writeExport(w, st, obs); err != nil {
		return err
	}
	e.logger.Info("export complete", "site", st.Code, "rows", len(obs))
	return nil
}

func writeExport(w io.Writer, st domain.Station, obs []domain.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.ExportHeader(st)); err != nil {
		return err
	}
	for _, o := range obs {
		if err := cw.Write(domain.ExportRow(o, st)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

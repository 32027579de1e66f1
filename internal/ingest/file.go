package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// IngestReader ingests a telemetry file for st. Stations uploading a single
// aggregate file carry a header row; the rest send positional lines.
func (c *Controller) IngestReader(ctx context.Context, st domain.Station, r io.Reader, name string) (Summary, error) {
	src, err := NewCSVSource(r, name, st.SingleFile)
	if err != nil {
		return Summary{Station: domain.NormalizeStationCode(st.Code), Source: name}, err
	}
	return c.Ingest(ctx, st, src)
}

// IngestFile opens path and ingests it for st.
func (c *Controller) IngestFile(ctx context.Context, st domain.Station, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()
	return c.IngestReader(ctx, st, f, filepath.Base(path))
}

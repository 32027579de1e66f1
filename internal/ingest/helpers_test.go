package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/glacier-telemetry/internal/adapter/memory"
	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
	"github.com/couchcryptid/glacier-telemetry/internal/quality"
)

var operational = domain.Station{Code: "ablato1", Operational: true}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rawLine renders a positional line for 15 June 2017 at hhmmss.
func rawLine(hhmmss string, sats int, rangeCM float64) string {
	return fmt.Sprintf("A,%d,1.2,%s,150617,6042.1234,14652.5000,%g,_,512,87,3.4,-1.5,12.9", sats, hhmmss, rangeCM)
}

type harness struct {
	store      *memory.ObservationStore
	metrics    *observability.Metrics
	controller *Controller
}

func newHarness(store domain.ObservationStore, opts Options) *harness {
	mem, _ := store.(*memory.ObservationStore)
	metrics := observability.NewMetricsForTesting()
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	c := NewController(store, domain.NewNormalizer("", nil), quality.NewEvaluator(store, quality.DefaultThresholds()), discardLogger(), metrics, opts)
	return &harness{store: mem, metrics: metrics, controller: c}
}

// flakyStore fails the first failures calls to Save with a transient error.
type flakyStore struct {
	*memory.ObservationStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) Save(ctx context.Context, o domain.Observation) (domain.Observation, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return domain.Observation{}, &domain.TransientStoreError{Op: "save", Err: context.DeadlineExceeded}
	}
	return f.ObservationStore.Save(ctx, o)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.Observation
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, obs []domain.Observation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, obs...)
	return nil
}

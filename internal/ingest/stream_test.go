package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/glacier-telemetry/internal/adapter/memory"
	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// mockReader hands out its batches in order, then blocks until cancelled.
type mockReader struct {
	batches [][]domain.RawMessage
	errs    []error
	calls   atomic.Int64
}

func (m *mockReader) ReadBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	i := int(m.calls.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.batches) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

// commitLog records committed offsets in call order.
type commitLog struct {
	mu      sync.Mutex
	offsets []int64
}

func (c *commitLog) add(offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, offset)
}

func (c *commitLog) all() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.offsets...)
}

func message(station, value string, offset int64, committed *commitLog) domain.RawMessage {
	return partitioned(station, value, 0, offset, committed)
}

func partitioned(station, value string, partition int, offset int64, committed *commitLog) domain.RawMessage {
	return domain.RawMessage{
		Key:       []byte(station),
		Value:     []byte(value),
		Headers:   map[string]string{"source": "uplink"},
		Topic:     "raw-telemetry",
		Partition: partition,
		Offset:    offset,
		Commit: func(context.Context) error {
			committed.add(offset)
			return nil
		},
	}
}

// failingStations fails lookups for one station code.
type failingStations struct {
	StationLookup
	code string
}

func (f failingStations) Station(ctx context.Context, code string) (domain.Station, error) {
	if code == f.code {
		return domain.Station{}, errors.New("connection reset")
	}
	return f.StationLookup.Station(ctx, code)
}

func TestStream_Run(t *testing.T) {
	var committed commitLog
	batch := []domain.RawMessage{
		message("ABLATO1", rawLine("120000", 4, 200), 1, &committed),
		message("ghost", rawLine("120000", 4, 200), 2, &committed),
		message("ablato1", rawLine("130000", 4, 201), 3, &committed),
		message("ablato1", "V,0,_,130500,150617,0,0,0,_,0,0,0,_,0", 4, &committed),
		message("ablato1", rawLine("120000", 4, 200), 5, &committed),
	}
	reader := &mockReader{batches: [][]domain.RawMessage{batch}}
	stations := memory.NewStationRepository(operational)
	h := newHarness(memory.NewObservationStore(), Options{})
	s := NewStream(reader, stations, h.controller, discardLogger(), h.metrics, 10)

	require.Error(t, s.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 2, h.store.Len("ablato1"))
	assert.Equal(t, []int64{5}, committed.all())
	assert.NoError(t, s.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.LinesSkipped.WithLabelValues("unknown_station")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DuplicatesSkipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.PipelineRunning))
}

func TestStream_ReadErrorBacksOff(t *testing.T) {
	var committed commitLog
	reader := &mockReader{
		errs:    []error{errors.New("broker unavailable")},
		batches: [][]domain.RawMessage{nil, {message("ablato1", rawLine("120000", 4, 200), 1, &committed)}},
	}
	h := newHarness(memory.NewObservationStore(), Options{})
	s := NewStream(reader, memory.NewStationRepository(operational), h.controller, discardLogger(), h.metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 1, h.store.Len("ablato1"))
	assert.Equal(t, []int64{1}, committed.all())
}

func TestStream_InactiveStationCommitted(t *testing.T) {
	var committed commitLog
	inactive := domain.Station{Code: "ablato2"}
	reader := &mockReader{batches: [][]domain.RawMessage{{message("ablato2", rawLine("120000", 4, 200), 1, &committed)}}}
	h := newHarness(memory.NewObservationStore(), Options{})
	s := NewStream(reader, memory.NewStationRepository(inactive), h.controller, discardLogger(), h.metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 0, h.store.Len("ablato2"))
	assert.Equal(t, []int64{1}, committed.all())
}

func TestStream_CommitsEachPartitionOnceInOrder(t *testing.T) {
	var committed commitLog
	line := func(hhmmss string) string { return rawLine(hhmmss, 4, 200) }
	batch := []domain.RawMessage{
		partitioned("ablato1", line("120000"), 0, 1, &committed),
		partitioned("ghost", line("120000"), 0, 2, &committed),
		partitioned("ablato1", line("130000"), 0, 3, &committed),
		partitioned("ablato1", line("140000"), 1, 7, &committed),
		partitioned("ghost", line("130000"), 1, 8, &committed),
	}
	reader := &mockReader{batches: [][]domain.RawMessage{batch}}
	h := newHarness(memory.NewObservationStore(), Options{})
	s := NewStream(reader, memory.NewStationRepository(operational), h.controller, discardLogger(), h.metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 3, h.store.Len("ablato1"))
	assert.Equal(t, []int64{3, 8}, committed.all())
}

func TestStream_LookupFailureHoldsLaterOffsets(t *testing.T) {
	var committed commitLog
	batch := []domain.RawMessage{
		message("ablato1", rawLine("120000", 4, 200), 1, &committed),
		message("ablato2", rawLine("120000", 4, 200), 2, &committed),
		message("ablato1", rawLine("130000", 4, 201), 3, &committed),
	}
	reader := &mockReader{batches: [][]domain.RawMessage{batch}}
	stations := failingStations{StationLookup: memory.NewStationRepository(operational), code: "ablato2"}
	h := newHarness(memory.NewObservationStore(), Options{})
	s := NewStream(reader, stations, h.controller, discardLogger(), h.metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 2, h.store.Len("ablato1"))
	assert.Equal(t, []int64{1}, committed.all())
}

func TestGroupByStation(t *testing.T) {
	var c commitLog
	groups := groupByStation([]domain.RawMessage{
		message("b", "1", 1, &c),
		message("a", "2", 2, &c),
		message("B", "3", 3, &c),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "b", groups[0][0].Station())
	assert.Len(t, groups[0], 2)
	assert.Equal(t, int64(3), groups[0][1].Offset)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(4*time.Second, maxBackoff))
}

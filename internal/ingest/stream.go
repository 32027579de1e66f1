package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
)

// BatchReader reads up to batchSize raw messages from the stream.
type BatchReader interface {
	ReadBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// StationLookup resolves a station code.
type StationLookup interface {
	Station(ctx context.Context, code string) (domain.Station, error)
}

// Stream feeds raw lines from a message stream through a Controller.
type Stream struct {
	reader     BatchReader
	stations   StationLookup
	controller *Controller
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	batchSize  int
}

// NewStream creates a Stream.
func NewStream(r BatchReader, stations StationLookup, c *Controller, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Stream {
	return &Stream{
		reader:     r,
		stations:   stations,
		controller: c,
		logger:     logger,
		metrics:    metrics,
		batchSize:  batchSize,
	}
}

// CheckReadiness returns nil once the stream has handled at least one batch.
func (s *Stream) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("stream has not processed any messages yet")
	}
	return nil
}

// Run consumes batches until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	s.logger.Info("stream ingestion started", "batch_size", s.batchSize)
	s.metrics.PipelineRunning.Set(1)
	defer s.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stream ingestion stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !s.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one read-ingest-commit cycle. Returns false if the stream
// should stop.
func (s *Stream) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	batch, err := s.reader.ReadBatch(ctx, s.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Error("read batch failed", "error", err)
		return s.backoffOrStop(ctx, backoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	s.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = initialBackoff

	held := make(map[string]bool)
	for _, group := range groupByStation(batch) {
		settled, ok := s.ingestGroup(ctx, group)
		if !ok {
			return false
		}
		if !settled {
			held[group[0].Station()] = true
		}
	}
	s.commit(ctx, batch, held)

	s.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	s.ready.Store(true)
	return true
}

// ingestGroup ingests one station's messages. settled reports whether their
// offsets may be committed; ok is false if the stream should stop.
func (s *Stream) ingestGroup(ctx context.Context, msgs []domain.RawMessage) (settled, ok bool) {
	code := msgs[0].Station()
	st, err := s.stations.Station(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return false, false
		}
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("unknown station, dropping messages", "site", code, "count", len(msgs))
			s.metrics.LinesSkipped.WithLabelValues("unknown_station").Add(float64(len(msgs)))
			return true, true
		}
		// Left uncommitted for redelivery.
		s.logger.Error("station lookup failed", "site", code, "error", err)
		return false, true
	}

	lines := make([]Line, len(msgs))
	for i, m := range msgs {
		lines[i] = ParseLine(m.Source(), int(m.Offset), string(m.Value))
	}

	if _, err := s.controller.Ingest(ctx, st, NewSliceSource(lines...)); err != nil {
		if ctx.Err() != nil {
			return false, false
		}
		if !errors.Is(err, domain.ErrStationInactive) {
			s.logger.Error("stream ingestion failed", "site", code, "error", err)
		}
	}
	return true, true
}

func (s *Stream) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commit commits each partition once, at the last message that precedes the
// first message of a held station. Offsets never move backwards.
func (s *Stream) commit(ctx context.Context, batch []domain.RawMessage, held map[string]bool) {
	type partition struct {
		topic string
		id    int
	}
	var order []partition
	last := make(map[partition]int)
	blocked := make(map[partition]bool)
	for i, m := range batch {
		p := partition{m.Topic, m.Partition}
		if blocked[p] {
			continue
		}
		if held[m.Station()] {
			blocked[p] = true
			continue
		}
		if _, seen := last[p]; !seen {
			order = append(order, p)
		}
		last[p] = i
	}

	for _, p := range order {
		m := batch[last[p]]
		if m.Commit == nil {
			continue
		}
		if err := m.Commit(ctx); err != nil {
			s.logger.Warn("commit offset failed", "error", err,
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset)
		}
	}
}

// groupByStation splits a batch by station, keeping first-seen station order
// and message order within each station.
func groupByStation(batch []domain.RawMessage) [][]domain.RawMessage {
	index := make(map[string]int)
	var groups [][]domain.RawMessage
	for _, m := range batch {
		code := m.Station()
		i, ok := index[code]
		if !ok {
			i = len(groups)
			index[code] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

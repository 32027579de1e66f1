// Package ingest turns raw telemetry lines into stored observations:
// normalize, quality-check, then insert unless the reading already exists.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
	"github.com/couchcryptid/glacier-telemetry/internal/quality"
)

// Publisher announces newly stored observations.
type Publisher interface {
	Publish(ctx context.Context, obs []domain.Observation) error
}

// Summary counts the outcome of one ingestion run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Station    string        `json:"site"`
	Source     string        `json:"source"`
	Read       int           `json:"read"`
	Saved      int           `json:"saved"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Flagged    int           `json:"flagged"`
	Elapsed    time.Duration `json:"elapsed"`
}

func (s *Summary) add(o Summary) {
	s.Read += o.Read
	s.Saved += o.Saved
	s.Duplicates += o.Duplicates
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.Flagged += o.Flagged
}

// Options tune a Controller.
type Options struct {
	// Retries bounds how often a line is retried after a transient store error.
	Retries int
	// RetryBackoff is the first retry delay; it doubles up to five seconds.
	RetryBackoff time.Duration
	// Zone overrides each station's UTC offset when set.
	Zone *time.Location
	// Publisher, when set, receives each run's new observations.
	Publisher Publisher
}

// Controller runs the normalize, quality-check, store-or-skip sequence.
type Controller struct {
	store      domain.ObservationStore
	normalizer *domain.Normalizer
	evaluator  *quality.Evaluator
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewController creates a Controller writing to store.
func NewController(store domain.ObservationStore, n *domain.Normalizer, e *quality.Evaluator, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Controller {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = initialBackoff
	}
	return &Controller{
		store:      store,
		normalizer: n,
		evaluator:  e,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Ingest reads every line from src for station st. Per-line failures are
// logged and counted; the returned error is reserved for conditions that
// stop the whole run: an inactive station, an unreadable source, or a
// cancelled context.
func (c *Controller) Ingest(ctx context.Context, st domain.Station, src LineSource) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), Station: domain.NormalizeStationCode(st.Code)}
	log := c.logger.With("run_id", sum.RunID, "site", sum.Station)

	if !st.Operational {
		c.metrics.LinesSkipped.WithLabelValues("inactive").Inc()
		log.Warn("station not operational, skipping import")
		return sum, fmt.Errorf("ingest %s: %w", sum.Station, domain.ErrStationInactive)
	}

	var saved []domain.Observation
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read %s: %w", sum.Station, err)
		}
		if sum.Source == "" {
			sum.Source = line.Source
		}

		res, obs := c.processLine(ctx, log, st, line)
		sum.add(res)
		if obs != nil {
			saved = append(saved, *obs)
		}
	}

	c.publish(ctx, log, saved)
	sum.Elapsed = time.Since(start)
	log.Info("ingestion finished",
		"source", sum.Source,
		"read", sum.Read,
		"saved", sum.Saved,
		"duplicates", sum.Duplicates,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)
	return sum, ctx.Err()
}

// processLine handles one line and reports its contribution to the summary,
// plus the stored observation when one was inserted.
func (c *Controller) processLine(ctx context.Context, log *slog.Logger, st domain.Station, line Line) (Summary, *domain.Observation) {
	res := Summary{Read: 1}
	c.metrics.LinesRead.Inc()
	log = log.With("source", line.Source, "line", line.Number)

	switch {
	case line.Blank():
		c.skip(&res, "blank")
		return res, nil
	case line.Void():
		log.Debug("void line skipped")
		c.skip(&res, "void")
		return res, nil
	}

	rec, err := line.Record()
	if err != nil {
		log.Warn("line skipped", "error", err, "raw", line.Fields)
		c.skip(&res, "structure")
		return res, nil
	}

	obs, err := c.normalizer.Normalize(rec, st, c.opts.Zone)
	if err != nil {
		var ne *domain.NormalizationError
		if errors.As(err, &ne) {
			log.Warn("normalization failed", "field", ne.Field, "raw", ne.Raw, "error", ne.Err)
		} else {
			log.Warn("normalization failed", "error", err)
		}
		c.fail(&res, "normalize")
		return res, nil
	}

	lock := c.stationLock(obs.Station)
	lock.Lock()
	defer lock.Unlock()

	var qc quality.Result
	err = c.withRetry(ctx, log, "quality", func() error {
		candidate := obs
		r, err := c.evaluator.Evaluate(ctx, &candidate)
		if err == nil {
			obs, qc = candidate, r
		}
		return err
	})
	if err != nil {
		log.Error("quality check failed", "error", err, "datetime", obs.Datetime)
		c.fail(&res, "quality")
		return res, nil
	}
	if len(qc.Triggered) > 0 {
		res.Flagged = 1
		for _, rule := range qc.Triggered {
			c.metrics.FlagsCleared.WithLabelValues(string(rule)).Inc()
		}
		log.Debug("quality flags cleared", "rules", qc.Triggered, "gps_valid", obs.GPSValid, "range_valid", obs.RangeValid)
	}

	var stored domain.Observation
	err = c.withRetry(ctx, log, "store", func() error {
		_, err := c.store.Get(ctx, obs.Station, obs.Datetime)
		if err == nil {
			return domain.ErrConflict
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		stored, err = c.store.Save(ctx, obs)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrConflict):
		log.Debug("observation already stored", "datetime", obs.Datetime)
		res.Duplicates = 1
		c.metrics.DuplicatesSkipped.Inc()
		return res, nil
	case err != nil:
		log.Error("store failed", "error", err, "datetime", obs.Datetime, "raw", rec.Values)
		c.fail(&res, "store")
		return res, nil
	}

	log.Debug("observation stored", "datetime", stored.Datetime, "gps_valid", stored.GPSValid, "range_valid", stored.RangeValid)
	res.Saved = 1
	c.metrics.ObservationsSaved.Inc()
	return res, &stored
}

// withRetry runs fn, retrying transient store errors with exponential backoff.
func (c *Controller) withRetry(ctx context.Context, log *slog.Logger, op string, fn func() error) error {
	backoff := c.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !domain.IsTransient(err) || attempt >= c.opts.Retries {
			return err
		}
		log.Warn("transient store error, retrying", "op", op, "attempt", attempt+1, "error", err)
		c.metrics.StoreRetries.Inc()
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func (c *Controller) publish(ctx context.Context, log *slog.Logger, obs []domain.Observation) {
	if c.opts.Publisher == nil || len(obs) == 0 {
		return
	}
	if err := c.opts.Publisher.Publish(ctx, obs); err != nil {
		log.Error("publish observations failed", "error", err, "count", len(obs))
		c.metrics.LineFailures.WithLabelValues("publish").Add(float64(len(obs)))
	}
}

func (c *Controller) stationLock(station string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[station]
	if !ok {
		l = &sync.Mutex{}
		c.locks[station] = l
	}
	return l
}

func (c *Controller) skip(res *Summary, reason string) {
	res.Skipped = 1
	c.metrics.LinesSkipped.WithLabelValues(reason).Inc()
}

func (c *Controller) fail(res *Summary, stage string) {
	res.Failed = 1
	c.metrics.LineFailures.WithLabelValues(stage).Inc()
}

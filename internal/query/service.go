package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
)

// Accepted begin/end layouts, interpreted in the station's zone.
const (
	timestampLayout = "2006-01-02T15:04:05"
	dateLayout      = time.DateOnly
)

// StationLookup resolves a station code.
type StationLookup interface {
	Station(ctx context.Context, code string) (domain.Station, error)
}

// Response is the success envelope. Results is set for countable payloads.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Results *int `json:"results,omitempty"`
}

func counted(data any, n int) Response {
	return Response{Success: true, Data: data, Results: &n}
}

// Service executes read requests against the record store. It never writes
// to the store.
type Service struct {
	store    domain.ObservationStore
	stations StationLookup
	cache    Cache
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service. A nil cache or a zero ttl disables caching
// of derived queries.
func NewService(store domain.ObservationStore, stations StationLookup, cache Cache, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:    store,
		stations: stations,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		metrics:  metrics,
	}
}

// Execute runs req and wraps the result in the response envelope.
func (s *Service) Execute(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := s.execute(ctx, req)
	kind := string(req.Kind)
	if !slices.Contains([]Kind{KindAvailableDates, KindLatestWindow, KindTimeRange}, req.Kind) {
		kind = "unknown"
	}
	s.metrics.QueryRequests.WithLabelValues(kind, Outcome(err)).Inc()
	s.metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return resp, err
}

func (s *Service) execute(ctx context.Context, req Request) (Response, error) {
	switch req.Kind {
	case KindAvailableDates, KindLatestWindow, KindTimeRange:
	default:
		return Response{}, &domain.NotImplementedError{What: fmt.Sprintf("request kind %q", req.Kind)}
	}

	compiled, err := Compile(req.Query)
	if err != nil {
		return Response{}, err
	}
	st, err := s.stations.Station(ctx, req.Station)
	if err != nil {
		return Response{}, fmt.Errorf("station %q: %w", req.Station, err)
	}

	var obs []domain.Observation
	switch req.Kind {
	case KindAvailableDates:
		dates, err := s.availableDates(ctx, st)
		if err != nil {
			return Response{}, err
		}
		return counted(dates, len(dates)), nil
	case KindLatestWindow:
		obs, err = s.latestWindow(ctx, st, req.N, req.Unit)
	case KindTimeRange:
		var r domain.TimeRange
		if r, err = parseRange(req.Begin, req.End, st.Location()); err != nil {
			return Response{}, err
		}
		obs, err = s.store.Filter(ctx, st.Code, r, nil)
	}
	if err != nil {
		return Response{}, err
	}

	res := compiled.Apply(obs)
	return counted(res.Data(), res.Count()), nil
}

// availableDates lists the distinct station-local dates with data.
func (s *Service) availableDates(ctx context.Context, st domain.Station) ([]string, error) {
	key := CacheKey{Station: st.Code, Kind: KindAvailableDates}
	var dates []string
	if s.cached(ctx, key, &dates) {
		return dates, nil
	}

	obs, err := s.store.Filter(ctx, st.Code, domain.TimeRange{}, nil)
	if err != nil {
		return nil, err
	}
	dates = make([]string, 0, len(obs))
	for _, o := range obs {
		dates = append(dates, o.Date.String())
	}
	slices.Sort(dates)
	dates = slices.Compact(dates)

	s.remember(ctx, key, dates)
	return dates, nil
}

// latestWindow returns the readings in the n units ending at the most recent
// reading.
func (s *Service) latestWindow(ctx context.Context, st domain.Station, n int, unit string) ([]domain.Observation, error) {
	span, err := windowUnit(unit)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, domain.BadRequest("n must be at least 1")
	}

	key := CacheKey{Station: st.Code, Kind: KindLatestWindow, Params: fmt.Sprintf("%d %s", n, unit)}
	var obs []domain.Observation
	if s.cached(ctx, key, &obs) {
		return obs, nil
	}

	latest, err := s.store.Latest(ctx, st.Code)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Observation{}, nil
	}
	if err != nil {
		return nil, err
	}
	r := domain.TimeRange{Begin: latest.Datetime.Add(-time.Duration(n) * span), End: latest.Datetime}
	if obs, err = s.store.Filter(ctx, st.Code, r, nil); err != nil {
		return nil, err
	}

	s.remember(ctx, key, obs)
	return obs, nil
}

func windowUnit(unit string) (time.Duration, error) {
	switch strings.ToLower(unit) {
	case "hours", "hour":
		return time.Hour, nil
	case "", "days", "day":
		return 24 * time.Hour, nil
	case "weeks", "week":
		return 7 * 24 * time.Hour, nil
	}
	return 0, domain.BadRequest("unknown window unit %q", unit)
}

// parseRange converts begin and end into a closed UTC range. A date-only end
// covers the whole day.
func parseRange(begin, end string, loc *time.Location) (domain.TimeRange, error) {
	if begin == "" || end == "" {
		return domain.TimeRange{}, domain.BadRequest("begin and end are required together")
	}
	b, _, err := parseLocal(begin, loc)
	if err != nil {
		return domain.TimeRange{}, err
	}
	e, dateOnly, err := parseLocal(end, loc)
	if err != nil {
		return domain.TimeRange{}, err
	}
	if dateOnly {
		e = e.Add(24*time.Hour - time.Second)
	}
	if e.Before(b) {
		return domain.TimeRange{}, domain.BadRequest("end precedes begin")
	}
	return domain.TimeRange{Begin: b.UTC(), End: e.UTC()}, nil
}

func parseLocal(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(timestampLayout, s, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, domain.BadRequest("malformed timestamp %q, want %s", s, timestampLayout)
}

// cached decodes a cached value into dst and reports whether it was found.
// Cache failures are logged and treated as misses.
func (s *Service) cached(ctx context.Context, key CacheKey, dst any) bool {
	if s.cache == nil || s.ttl <= 0 {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("query cache read failed", "key", key.String(), "error", err)
		}
		s.metrics.CacheLookups.WithLabelValues(string(key.Kind), "miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("query cache entry undecodable", "key", key.String(), "error", err)
		s.metrics.CacheLookups.WithLabelValues(string(key.Kind), "miss").Inc()
		return false
	}
	s.metrics.CacheLookups.WithLabelValues(string(key.Kind), "hit").Inc()
	return true
}

func (s *Service) remember(ctx context.Context, key CacheKey, v any) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("query cache encode failed", "key", key.String(), "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("query cache write failed", "key", key.String(), "error", err)
	}
}

// Export returns a station and its full history in datetime order.
func (s *Service) Export(ctx context.Context, code string) (domain.Station, []domain.Observation, error) {
	st, err := s.stations.Station(ctx, code)
	if err != nil {
		return domain.Station{}, nil, fmt.Errorf("station %q: %w", code, err)
	}
	obs, err := s.store.Filter(ctx, st.Code, domain.TimeRange{}, nil)
	if err != nil {
		return domain.Station{}, nil, err
	}
	return st, obs, nil
}

// Outcome classifies an Execute error for metrics and transports.
func Outcome(err error) string {
	var (
		bad       *domain.BadRequestError
		throttled *domain.ThrottledError
		notImpl   *domain.NotImplementedError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &bad):
		return "bad_request"
	case errors.As(err, &throttled):
		return "throttled"
	case errors.As(err, &notImpl):
		return "not_implemented"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsTransient(err):
		return "unavailable"
	default:
		return "error"
	}
}

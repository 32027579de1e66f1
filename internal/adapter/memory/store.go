// Package memory provides in-process implementations of the record store
// and station repository, used for dry runs and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// ObservationStore keeps observations per station, sorted by datetime.
type ObservationStore struct {
	mu     sync.RWMutex
	nextID int64
	byStn  map[string][]domain.Observation
}

// NewObservationStore returns an empty store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{byStn: make(map[string][]domain.Observation)}
}

func (s *ObservationStore) Get(_ context.Context, station string, at time.Time) (domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obs := s.byStn[domain.NormalizeStationCode(station)]
	if i, ok := search(obs, at); ok {
		return obs[i], nil
	}
	return domain.Observation{}, domain.ErrNotFound
}

func (s *ObservationStore) Filter(_ context.Context, station string, r domain.TimeRange, p domain.Predicate) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Observation
	for _, o := range s.byStn[domain.NormalizeStationCode(station)] {
		if !r.Contains(o.Datetime) {
			continue
		}
		if p != nil && !p(&o) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *ObservationStore) Save(_ context.Context, o domain.Observation) (domain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.Station = domain.NormalizeStationCode(o.Station)
	obs := s.byStn[o.Station]
	i, found := search(obs, o.Datetime)
	if found {
		return domain.Observation{}, domain.ErrConflict
	}
	s.nextID++
	o.ID = s.nextID
	s.byStn[o.Station] = slices.Insert(obs, i, o)
	return o, nil
}

func (s *ObservationStore) Latest(_ context.Context, station string) (domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obs := s.byStn[domain.NormalizeStationCode(station)]
	if len(obs) == 0 {
		return domain.Observation{}, domain.ErrNotFound
	}
	return obs[len(obs)-1], nil
}

// Len returns the number of stored observations for station.
func (s *ObservationStore) Len(station string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byStn[domain.NormalizeStationCode(station)])
}

func search(obs []domain.Observation, at time.Time) (int, bool) {
	return slices.BinarySearchFunc(obs, at, func(o domain.Observation, t time.Time) int {
		return o.Datetime.Compare(t)
	})
}

// StationRepository keeps stations, campaigns and site visits in memory.
type StationRepository struct {
	mu        sync.RWMutex
	stations  map[string]domain.Station
	campaigns []domain.Campaign
	visits    []domain.SiteVisit
	nextID    int64
}

// NewStationRepository returns a repository seeded with stations.
func NewStationRepository(stations ...domain.Station) *StationRepository {
	r := &StationRepository{stations: make(map[string]domain.Station)}
	for _, st := range stations {
		st.Code = domain.NormalizeStationCode(st.Code)
		r.stations[st.Code] = st
	}
	return r
}

func (r *StationRepository) Station(_ context.Context, code string) (domain.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.stations[domain.NormalizeStationCode(code)]
	if !ok {
		return domain.Station{}, domain.ErrNotFound
	}
	return st, nil
}

func (r *StationRepository) Stations(_ context.Context) ([]domain.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Station, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.Station) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

func (r *StationRepository) SaveStation(_ context.Context, st domain.Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.Code = domain.NormalizeStationCode(st.Code)
	r.stations[st.Code] = st
	return nil
}

func (r *StationRepository) Campaigns(_ context.Context, station string) ([]domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	station = domain.NormalizeStationCode(station)
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Station == station {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Campaign) int { return cmp.Compare(a.Season, b.Season) })
	return out, nil
}

func (r *StationRepository) SaveCampaign(_ context.Context, c domain.Campaign) (domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Station = domain.NormalizeStationCode(c.Station)
	for _, existing := range r.campaigns {
		if existing.Station == c.Station && existing.Season == c.Season {
			return domain.Campaign{}, domain.ErrConflict
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.campaigns = append(r.campaigns, c)
	return c, nil
}

func (r *StationRepository) SiteVisits(_ context.Context, station string) ([]domain.SiteVisit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	station = domain.NormalizeStationCode(station)
	var out []domain.SiteVisit
	for _, v := range r.visits {
		if v.Station == station {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b domain.SiteVisit) int { return a.Visited.Compare(b.Visited) })
	return out, nil
}

func (r *StationRepository) SaveSiteVisit(_ context.Context, v domain.SiteVisit) (domain.SiteVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v.Station = domain.NormalizeStationCode(v.Station)
	r.nextID++
	v.ID = r.nextID
	r.visits = append(r.visits, v)
	return v, nil
}

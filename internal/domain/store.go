package domain

import (
	"context"
	"time"
)

// TimeRange is a closed interval on UTC datetimes. A zero bound is open.
type TimeRange struct {
	Begin time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Begin.IsZero() && t.Before(r.Begin) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Predicate selects observations in Filter. A nil Predicate matches all.
type Predicate func(o *Observation) bool

// ObservationStore is the record store consulted by quality control and
// written by ingestion.
//
// Get and Latest return ErrNotFound when there is no match. Save returns
// ErrConflict when an observation already exists for (station, datetime).
// Filter returns observations ordered by ascending datetime. Failures that
// may succeed on retry are reported as *TransientStoreError.
type ObservationStore interface {
	Get(ctx context.Context, station string, at time.Time) (Observation, error)
	Filter(ctx context.Context, station string, r TimeRange, p Predicate) ([]Observation, error)
	Save(ctx context.Context, o Observation) (Observation, error)
	Latest(ctx context.Context, station string) (Observation, error)
}

// StationRepository persists stations and their deployment history.
type StationRepository interface {
	Station(ctx context.Context, code string) (Station, error)
	Stations(ctx context.Context) ([]Station, error)
	SaveStation(ctx context.Context, st Station) error
	Campaigns(ctx context.Context, station string) ([]Campaign, error)
	SaveCampaign(ctx context.Context, c Campaign) (Campaign, error)
	SiteVisits(ctx context.Context, station string) ([]SiteVisit, error)
	SaveSiteVisit(ctx context.Context, v SiteVisit) (SiteVisit, error)
}

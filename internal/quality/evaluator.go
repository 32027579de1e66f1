// Package quality flags telemetry readings that are physically implausible
// given their own values and the station's preceding reading. Flags are
// only ever cleared; readings are never discarded here.
package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// Rule names a quality rule, used in logs and metric labels.
type Rule string

const (
	RuleSatellites   Rule = "insufficient_constellation"
	RuleRangeCeiling Rule = "implausible_range"
	RuleSpacing      Rule = "non_independent_sampling"
	RuleJump         Rule = "implausible_jump"
	RulePropagated   Rule = "propagated_invalidity"
)

// Thresholds tune the rule set.
type Thresholds struct {
	MinSatellites   int
	RangeCeilingCM  float64
	NeighborWindow  time.Duration
	MinSpacing      time.Duration
	JumpWindow      time.Duration
	JumpThresholdCM float64
}

// DefaultThresholds returns the current field calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSatellites:   3,
		RangeCeilingCM:  600,
		NeighborWindow:  time.Hour,
		MinSpacing:      1600 * time.Second,
		JumpWindow:      3 * time.Hour,
		JumpThresholdCM: 5,
	}
}

// Validate rejects thresholds that would make a rule meaningless.
func (t Thresholds) Validate() error {
	switch {
	case t.MinSatellites < 0:
		return errors.New("minimum satellites must not be negative")
	case t.RangeCeilingCM <= 0:
		return errors.New("range ceiling must be positive")
	case t.NeighborWindow <= 0:
		return errors.New("neighbor window must be positive")
	case t.MinSpacing < 0, t.JumpWindow < 0:
		return errors.New("spacing and jump window must not be negative")
	case t.JumpThresholdCM < 0:
		return errors.New("jump threshold must not be negative")
	}
	return nil
}

// NeighborFinder is the slice of the record store the evaluator reads.
type NeighborFinder interface {
	Filter(ctx context.Context, station string, r domain.TimeRange, p domain.Predicate) ([]domain.Observation, error)
}

// Result lists the rules that cleared a flag on the candidate.
type Result struct {
	Prior     *domain.Observation
	Triggered []Rule
}

// Evaluator computes gps_valid and range_valid for candidates.
type Evaluator struct {
	store      NeighborFinder
	thresholds Thresholds
}

// NewEvaluator creates an Evaluator over store.
func NewEvaluator(store NeighborFinder, t Thresholds) *Evaluator {
	return &Evaluator{store: store, thresholds: t}
}

// Evaluate applies every rule to o in order and clears flags in place.
// Flags already false on o stay false.
func (e *Evaluator) Evaluate(ctx context.Context, o *domain.Observation) (Result, error) {
	var res Result
	th := e.thresholds

	if o.Sats < th.MinSatellites {
		o.GPSValid = false
		res.Triggered = append(res.Triggered, RuleSatellites)
	}
	if o.RangeCM > th.RangeCeilingCM {
		o.RangeValid = false
		res.Triggered = append(res.Triggered, RuleRangeCeiling)
	}

	prior, err := e.prior(ctx, o)
	if err != nil {
		return res, err
	}
	if prior == nil {
		return res, nil
	}
	res.Prior = prior

	gap := o.Datetime.Sub(prior.Datetime)
	delta := o.RangeCM - prior.RangeCM

	if gap < th.MinSpacing {
		o.GPSValid = false
		res.Triggered = append(res.Triggered, RuleSpacing)
	}
	if gap < th.JumpWindow && math.Abs(delta) > th.JumpThresholdCM && prior.RangeCM <= th.RangeCeilingCM {
		o.RangeValid = false
		res.Triggered = append(res.Triggered, RuleJump)
	}
	if !prior.RangeValid && delta > 0 {
		o.RangeValid = false
		res.Triggered = append(res.Triggered, RulePropagated)
	}
	return res, nil
}

// prior returns the nearest stored reading strictly before o inside the
// neighbor window, or nil.
func (e *Evaluator) prior(ctx context.Context, o *domain.Observation) (*domain.Observation, error) {
	w := e.thresholds.NeighborWindow
	r := domain.TimeRange{Begin: o.Datetime.Add(-w), End: o.Datetime.Add(w)}
	before := func(c *domain.Observation) bool { return c.Datetime.Before(o.Datetime) }

	candidates, err := e.store.Filter(ctx, o.Station, r, before)
	if err != nil {
		return nil, fmt.Errorf("find prior reading: %w", err)
	}

	var best *domain.Observation
	for i := range candidates {
		c := &candidates[i]
		if !c.Datetime.Before(o.Datetime) {
			continue
		}
		if best == nil || c.Datetime.After(best.Datetime) {
			best = c
		}
	}
	return best, nil
}

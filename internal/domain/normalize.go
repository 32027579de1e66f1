package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultNullToken is the raw placeholder for a missing value.
const DefaultNullToken = "_"

// RawRecord is one reading as transmitted, keyed by raw field alias.
type RawRecord struct {
	Source string
	Line   int
	Values map[string]string
}

// Normalizer turns raw records into typed observations.
type Normalizer struct {
	nullToken string
	clock     clockwork.Clock
}

// NewNormalizer creates a Normalizer stamping ingestion times from clock. An
// empty nullToken selects DefaultNullToken; a nil clock selects real time.
func NewNormalizer(nullToken string, clock clockwork.Clock) *Normalizer {
	if nullToken == "" {
		nullToken = DefaultNullToken
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Normalizer{nullToken: nullToken, clock: clock}
}

// IsNull reports whether a raw value stands for null.
func (n *Normalizer) IsNull(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == n.nullToken
}

// Normalize builds an observation candidate for station st. The zone loc is
// applied to the naive date and time; nil selects the station's own offset.
// Any failure returns a *NormalizationError and no partial observation.
func (n *Normalizer) Normalize(rec RawRecord, st Station, loc *time.Location) (Observation, error) {
	if loc == nil {
		loc = st.Location()
	}

	aliases := make([]string, 0, len(rec.Values))
	for alias := range rec.Values {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	var b builder
	seen := make(map[string]bool, len(aliases))
	for _, alias := range aliases {
		raw := strings.TrimSpace(rec.Values[alias])
		field, ok := LookupRawField(alias)
		if !ok {
			return Observation{}, &NormalizationError{Field: alias, Raw: raw, Err: ErrUnknownField}
		}
		if n.IsNull(raw) {
			if !field.Nullable {
				return Observation{}, &NormalizationError{Field: field.Canonical, Raw: raw, Err: ErrNullNotAllowed}
			}
			continue
		}
		if err := b.set(field, raw); err != nil {
			return Observation{}, &NormalizationError{Field: field.Canonical, Raw: raw, Err: err}
		}
		seen[field.Canonical] = true
	}

	for _, f := range RequiredFields() {
		if !seen[f.Canonical] {
			return Observation{}, &NormalizationError{Field: f.Canonical, Err: ErrMissingField}
		}
	}

	o := b.obs
	o.Station = NormalizeStationCode(st.Code)
	o.Datetime = Combine(o.Date, o.Time, loc).UTC()
	o.Point = PointOf(o.Lng, o.Lat)
	o.GPSValid = true
	o.RangeValid = true
	o.IngestedAt = n.clock.Now().UTC()
	return o, nil
}

// ValidityFromCode maps the instrument status code: "A" is valid, anything
// else is not. Boolean spellings are honoured for pre-typed input.
func ValidityFromCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "A" {
		return true
	}
	b, err := strconv.ParseBool(code)
	return err == nil && b
}

type builder struct {
	obs Observation
}

func (b *builder) set(f RawField, raw string) error {
	o := &b.obs
	switch f.Kind {
	case FieldValidity:
		o.Valid = ValidityFromCode(raw)
	case FieldDate:
		d, err := ParseCompactDate(raw)
		if err != nil {
			return err
		}
		o.Date = d
	case FieldTime:
		t, err := ParseCompactTime(raw)
		if err != nil {
			return err
		}
		o.Time = t
	case FieldLatitude:
		v, err := ParseLatitude(raw)
		if err != nil {
			return err
		}
		o.Lat = v
	case FieldLongitude:
		v, err := ParseLongitude(raw)
		if err != nil {
			return err
		}
		o.Lng = -v
	case FieldInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return ErrInvalidNumber
		}
		return b.setInt(f.Canonical, v)
	case FieldFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidNumber
		}
		return b.setFloat(f.Canonical, v)
	}
	return nil
}

func (b *builder) setInt(canonical string, v int) error {
	o := &b.obs
	switch canonical {
	case "sats":
		if v < 0 {
			return ErrOutOfDomain
		}
		o.Sats = v
	case "above":
		o.Above = v
	case "below":
		o.Below = v
	}
	return nil
}

func (b *builder) setFloat(canonical string, v float64) error {
	o := &b.obs
	switch canonical {
	case "hdop":
		if v < 0 {
			return ErrOutOfDomain
		}
		o.HDOP = &v
	case "range_cm":
		o.RangeCM = v
	case "optical_range_cm":
		o.OpticalRangeCM = &v
	case "wind_spd":
		o.WindSpd = v
	case "temp_C":
		o.TempC = &v
	case "volts":
		o.Volts = v
	case "elev":
		o.Elev = &v
	}
	return nil
}

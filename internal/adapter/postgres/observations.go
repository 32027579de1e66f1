package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

const observationColumns = `id, station, valid, sats, hdop, obs_date, obs_time, datetime,
lat, lng, point_wkt, elev, gps_valid, range_valid, range_cm, optical_range_cm,
above, below, wind_spd, temp_c, volts, ingested_at`

const insertObservation = `INSERT INTO observations (station, valid, sats, hdop, obs_date, obs_time, datetime,
lat, lng, point_wkt, elev, gps_valid, range_valid, range_cm, optical_range_cm,
above, below, wind_spd, temp_c, volts, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (station, datetime) DO NOTHING
RETURNING id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) Get(ctx context.Context, station string, at time.Time) (domain.Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE station = $1 AND datetime = $2`,
		domain.NormalizeStationCode(station), at.UTC())
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Observation{}, classify("get observation", err)
	}
	return o, nil
}

// Filter selects the range in SQL and applies p to the decoded rows.
func (s *Store) Filter(ctx context.Context, station string, r domain.TimeRange, p domain.Predicate) ([]domain.Observation, error) {
	var (
		b    strings.Builder
		args = []any{domain.NormalizeStationCode(station)}
	)
	b.WriteString(`SELECT ` + observationColumns + ` FROM observations WHERE station = $1`)
	if !r.Begin.IsZero() {
		args = append(args, r.Begin.UTC())
		fmt.Fprintf(&b, ` AND datetime >= $%d`, len(args))
	}
	if !r.End.IsZero() {
		args = append(args, r.End.UTC())
		fmt.Fprintf(&b, ` AND datetime <= $%d`, len(args))
	}
	b.WriteString(` ORDER BY datetime`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, classify("filter observations", err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, classify("filter observations", err)
		}
		if p == nil || p(&o) {
			out = append(out, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify("filter observations", err)
	}
	return out, nil
}

// Save inserts o. An existing row for (station, datetime) yields ErrConflict
// and is left untouched.
func (s *Store) Save(ctx context.Context, o domain.Observation) (domain.Observation, error) {
	o.Station = domain.NormalizeStationCode(o.Station)
	o.Datetime = o.Datetime.UTC()
	err := s.db.QueryRowContext(ctx, insertObservation,
		o.Station, o.Valid, o.Sats, o.HDOP, o.Date.String(), o.Time.String(), o.Datetime,
		o.Lat, o.Lng, wkt.MarshalString(o.Point), o.Elev, o.GPSValid, o.RangeValid, o.RangeCM, o.OpticalRangeCM,
		o.Above, o.Below, o.WindSpd, o.TempC, o.Volts, o.IngestedAt.UTC(),
	).Scan(&o.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, domain.ErrConflict
	}
	if err != nil {
		return domain.Observation{}, classify("save observation", err)
	}
	return o, nil
}

func (s *Store) Latest(ctx context.Context, station string) (domain.Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE station = $1 ORDER BY datetime DESC LIMIT 1`,
		domain.NormalizeStationCode(station))
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Observation{}, classify("latest observation", err)
	}
	return o, nil
}

func scanObservation(row rowScanner) (domain.Observation, error) {
	var (
		o         domain.Observation
		date, tod string
		point     string
	)
	err := row.Scan(&o.ID, &o.Station, &o.Valid, &o.Sats, &o.HDOP, &date, &tod, &o.Datetime,
		&o.Lat, &o.Lng, &point, &o.Elev, &o.GPSValid, &o.RangeValid, &o.RangeCM, &o.OpticalRangeCM,
		&o.Above, &o.Below, &o.WindSpd, &o.TempC, &o.Volts, &o.IngestedAt)
	if err != nil {
		return domain.Observation{}, err
	}
	if err := o.Date.UnmarshalText([]byte(date)); err != nil {
		return domain.Observation{}, err
	}
	if err := o.Time.UnmarshalText([]byte(tod)); err != nil {
		return domain.Observation{}, err
	}
	if o.Point, err = wkt.UnmarshalPoint(point); err != nil {
		return domain.Observation{}, fmt.Errorf("decode point: %w", err)
	}
	o.Datetime = o.Datetime.UTC()
	o.IngestedAt = o.IngestedAt.UTC()
	return o, nil
}

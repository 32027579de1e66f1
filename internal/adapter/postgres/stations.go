package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

const stationColumns = `code, operational, upload_path, single_file, utc_offset_hours, initial_height_cm, capabilities`

func (s *Store) Station(ctx context.Context, code string) (domain.Station, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stationColumns+` FROM stations WHERE code = $1`, domain.NormalizeStationCode(code))
	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Station{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Station{}, classify("get station", err)
	}
	return st, nil
}

func (s *Store) Stations(ctx context.Context) ([]domain.Station, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stationColumns+` FROM stations ORDER BY code`)
	if err != nil {
		return nil, classify("list stations", err)
	}
	defer rows.Close()

	var out []domain.Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, classify("list stations", err)
		}
		out = append(out, st)
	}
	return out, classify("list stations", rows.Err())
}

// SaveStation inserts or replaces a station.
func (s *Store) SaveStation(ctx context.Context, st domain.Station) error {
	caps := make([]string, len(st.Capabilities))
	for i, c := range st.Capabilities {
		caps[i] = string(c)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO stations (`+stationColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (code) DO UPDATE
SET operational = EXCLUDED.operational,
    upload_path = EXCLUDED.upload_path,
    single_file = EXCLUDED.single_file,
    utc_offset_hours = EXCLUDED.utc_offset_hours,
    initial_height_cm = EXCLUDED.initial_height_cm,
    capabilities = EXCLUDED.capabilities`,
		domain.NormalizeStationCode(st.Code), st.Operational, st.UploadPath, st.SingleFile,
		st.UTCOffsetHours, st.InitialHeightCM, strings.Join(caps, ","))
	return classify("save station", err)
}

func scanStation(row rowScanner) (domain.Station, error) {
	var (
		st   domain.Station
		caps string
	)
	if err := row.Scan(&st.Code, &st.Operational, &st.UploadPath, &st.SingleFile,
		&st.UTCOffsetHours, &st.InitialHeightCM, &caps); err != nil {
		return domain.Station{}, err
	}
	for _, c := range strings.Split(caps, ",") {
		if c = strings.TrimSpace(c); c != "" {
			st.Capabilities = append(st.Capabilities, domain.Capability(c))
		}
	}
	return st, nil
}

// Campaigns lists a station's campaigns by season. Each campaign carries the
// site visits made between its deployment and recovery.
func (s *Store) Campaigns(ctx context.Context, station string) ([]domain.Campaign, error) {
	station = domain.NormalizeStationCode(station)
	rows, err := s.db.QueryContext(ctx, `SELECT id, station, season, deployment, recovery, region, has_uplink
FROM campaigns WHERE station = $1 ORDER BY season`, station)
	if err != nil {
		return nil, classify("list campaigns", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Station, &c.Season, &c.Deployment, &c.Recovery, &c.Region, &c.HasUplink); err != nil {
			return nil, classify("list campaigns", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list campaigns", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	visits, err := s.SiteVisits(ctx, station)
	if err != nil {
		return nil, err
	}
	for i := range out {
		c := &out[i]
		for _, v := range visits {
			if v.Visited.Before(c.Deployment) || (c.Recovery != nil && v.Visited.After(*c.Recovery)) {
				continue
			}
			c.SiteVisits = append(c.SiteVisits, v.ID)
		}
	}
	return out, nil
}

// SaveCampaign inserts c. A second campaign for the same station and season
// yields ErrConflict.
func (s *Store) SaveCampaign(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	c.Station = domain.NormalizeStationCode(c.Station)
	err := s.db.QueryRowContext(ctx, `INSERT INTO campaigns (station, season, deployment, recovery, region, has_uplink)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		c.Station, c.Season, c.Deployment, c.Recovery, c.Region, c.HasUplink).Scan(&c.ID)
	if err != nil {
		return domain.Campaign{}, classify("save campaign", err)
	}
	return c, nil
}

func (s *Store) SiteVisits(ctx context.Context, station string) ([]domain.SiteVisit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, station, visited, sensor_adjusted, sensor_height_cm, notes
FROM site_visits WHERE station = $1 ORDER BY visited`, domain.NormalizeStationCode(station))
	if err != nil {
		return nil, classify("list site visits", err)
	}
	defer rows.Close()

	var out []domain.SiteVisit
	for rows.Next() {
		var v domain.SiteVisit
		if err := rows.Scan(&v.ID, &v.Station, &v.Visited, &v.SensorAdjusted, &v.SensorHeightCM, &v.Notes); err != nil {
			return nil, classify("list site visits", err)
		}
		out = append(out, v)
	}
	return out, classify("list site visits", rows.Err())
}

func (s *Store) SaveSiteVisit(ctx context.Context, v domain.SiteVisit) (domain.SiteVisit, error) {
	v.Station = domain.NormalizeStationCode(v.Station)
	err := s.db.QueryRowContext(ctx, `INSERT INTO site_visits (station, visited, sensor_adjusted, sensor_height_cm, notes)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		v.Station, v.Visited, v.SensorAdjusted, v.SensorHeightCM, v.Notes).Scan(&v.ID)
	if err != nil {
		return domain.SiteVisit{}, classify("save site visit", err)
	}
	return v, nil
}

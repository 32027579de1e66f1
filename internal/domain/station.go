package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Capability names an optional observation attribute a station reports.
type Capability string

// CapabilityElevation marks stations whose receivers transmit altitude.
const CapabilityElevation Capability = "elevation"

// Station is a monitoring site.
type Station struct {
	Code            string       `json:"site"`
	Operational     bool         `json:"operational"`
	UploadPath      string       `json:"upload_path"`
	SingleFile      bool         `json:"single_file"`
	UTCOffsetHours  float64      `json:"utc_offset"`
	InitialHeightCM float64      `json:"init_height_cm"`
	Capabilities    []Capability `json:"capabilities,omitempty"`
}

// NormalizeStationCode lowercases and trims a site code.
func NormalizeStationCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Has reports whether the station has capability c.
func (s Station) Has(c Capability) bool {
	return slices.Contains(s.Capabilities, c)
}

// Location returns the station's fixed-offset zone.
func (s Station) Location() *time.Location {
	if s.UTCOffsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+g", s.UTCOffsetHours), int(s.UTCOffsetHours*3600))
}

// Campaign is one deployment epoch of a station's instrument. Unique per
// (station, season).
type Campaign struct {
	ID         int64      `json:"id"`
	Station    string     `json:"site"`
	Season     int        `json:"season"`
	Deployment time.Time  `json:"deployment"`
	Recovery   *time.Time `json:"recovery,omitempty"`
	Region     string     `json:"region"`
	HasUplink  bool       `json:"has_uplink"`
	SiteVisits []int64    `json:"site_visits,omitempty"`
}

// SiteVisit is a manual field visit, possibly re-leveling the sensor.
type SiteVisit struct {
	ID             int64     `json:"id"`
	Station        string    `json:"site"`
	Visited        time.Time `json:"datetime"`
	SensorAdjusted bool      `json:"ablato_adjusted"`
	SensorHeightCM *float64  `json:"ablato_height_cm,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

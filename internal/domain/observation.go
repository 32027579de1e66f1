package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Observation is one ablation telemetry reading, identified by
// (Station, Datetime).
type Observation struct {
	ID      int64  `json:"id,omitempty"`
	Station string `json:"site"`

	Valid bool     `json:"valid"`
	Sats  int      `json:"sats"`
	HDOP  *float64 `json:"hdop"`

	Date     CivilDate `json:"date"`
	Time     TimeOfDay `json:"time"`
	Datetime time.Time `json:"datetime"`

	Lat   float64   `json:"lat"`
	Lng   float64   `json:"lng"`
	Point orb.Point `json:"point"`
	Elev  *float64  `json:"elev"`

	GPSValid   bool `json:"gps_valid"`
	RangeValid bool `json:"range_valid"`

	RangeCM        float64  `json:"range_cm"`
	OpticalRangeCM *float64 `json:"optical_range_cm"`
	Above          int      `json:"above"`
	Below          int      `json:"below"`
	WindSpd        float64  `json:"wind_spd"`
	TempC          *float64 `json:"temp_C"`
	Volts          float64  `json:"volts"`

	IngestedAt time.Time `json:"ingested_at"`
}

// PointOf builds the geometry point for a signed longitude and latitude.
func PointOf(lng, lat float64) orb.Point {
	return orb.Point{lng, lat}
}

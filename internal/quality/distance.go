package quality

import (
	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// Meters per degree at 60°N.
const (
	MetersPerDegreeLat = 111412.0
	MetersPerDegreeLng = 55800.0
)

// PlanarDistance approximates the distance in meters between two readings
// using fixed per-degree scales. It is accurate near 60°N only.
func PlanarDistance(a, b domain.Observation) float64 {
	d := []float64{
		(b.Lat - a.Lat) * MetersPerDegreeLat,
		(b.Lng - a.Lng) * MetersPerDegreeLng,
	}
	return floats.Norm(d, 2)
}

// Track sums PlanarDistance over consecutive readings.
func Track(obs []domain.Observation) float64 {
	if len(obs) < 2 {
		return 0
	}
	legs := make([]float64, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		legs = append(legs, PlanarDistance(obs[i-1], obs[i]))
	}
	return floats.Sum(legs)
}

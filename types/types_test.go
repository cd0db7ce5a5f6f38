package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoCoordinateValid(t *testing.T) {
	tests := []struct {
		name     string
		coord    GeoCoordinate
		expected bool
	}{
		{"origin", GeoCoordinate{0, 0}, true},
		{"typical", GeoCoordinate{48.8584, 2.2945}, true},
		{"latitude bounds", GeoCoordinate{90, 180}, true},
		{"negative bounds", GeoCoordinate{-90, -180}, true},
		{"latitude too high", GeoCoordinate{90.1, 0}, false},
		{"latitude too low", GeoCoordinate{-90.1, 0}, false},
		{"longitude too high", GeoCoordinate{0, 180.1}, false},
		{"longitude too low", GeoCoordinate{0, -180.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.coord.Valid())
		})
	}
}

func TestCoordinateAccessors(t *testing.T) {
	pred := PredictedLocation{Latitude: 1.5, Longitude: -2.5}
	assert.Equal(t, GeoCoordinate{Latitude: 1.5, Longitude: -2.5}, pred.Coordinate())

	rec := LocationRecord{Latitude: 3, Longitude: 4}
	assert.Equal(t, GeoCoordinate{Latitude: 3, Longitude: 4}, rec.Coordinate())
}

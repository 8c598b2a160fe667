package serp

import (
	"math"
	"testing"

	"github.com/sammy/rankgrid/internal/domain"
)

func TestGridPointsCount(t *testing.T) {
	testCases := []struct {
		name     string
		gridSize int
		want     int
	}{
		{name: "single point", gridSize: 1, want: 1},
		{name: "3x3", gridSize: 3, want: 9},
		{name: "7x7", gridSize: 7, want: 49},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &domain.TrackingConfig{
				GridSize:    tc.gridSize,
				CenterLat:   40.71,
				CenterLng:   -74.0,
				RadiusMiles: 5,
			}
			points := gridPoints(cfg)
			if len(points) != tc.want {
				t.Errorf("got %d points, want %d", len(points), tc.want)
			}
		})
	}
}

func TestGridPointsCenteredOnConfig(t *testing.T) {
	cfg := &domain.TrackingConfig{
		GridSize:    3,
		CenterLat:   40.71,
		CenterLng:   -74.0,
		RadiusMiles: 5,
	}
	points := gridPoints(cfg)

	// Odd grid sizes place the middle point on the configured center.
	center := points[4]
	if math.Abs(center.lat-cfg.CenterLat) > 1e-9 {
		t.Errorf("center lat = %f, want %f", center.lat, cfg.CenterLat)
	}
	if math.Abs(center.lng-cfg.CenterLng) > 1e-9 {
		t.Errorf("center lng = %f, want %f", center.lng, cfg.CenterLng)
	}

	// Corners sit the full radius away on each axis.
	span := 2 * cfg.RadiusMiles / milesPerDegreeLat
	if math.Abs(points[0].lat-(cfg.CenterLat-span/2)) > 1e-9 {
		t.Errorf("corner lat = %f, want %f", points[0].lat, cfg.CenterLat-span/2)
	}
}

func TestGridPointSpacingUniform(t *testing.T) {
	cfg := &domain.TrackingConfig{
		GridSize:    4,
		CenterLat:   51.5,
		CenterLng:   -0.12,
		RadiusMiles: 3,
	}
	points := gridPoints(cfg)

	step := points[1].lng - points[0].lng
	for i := 1; i < 4; i++ {
		got := points[i].lng - points[i-1].lng
		if math.Abs(got-step) > 1e-9 {
			t.Errorf("non-uniform lng spacing at %d: %f vs %f", i, got, step)
		}
	}
}

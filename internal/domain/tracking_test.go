package domain

import "testing"

func TestTrackingConfigValidate(t *testing.T) {
	valid := TrackingConfig{
		BusinessName: "Joe's Pizza",
		GridSize:     5,
		CenterLat:    40.71,
		CenterLng:    -74.0,
		RadiusMiles:  5,
	}

	testCases := []struct {
		name    string
		mutate  func(*TrackingConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *TrackingConfig) {}},
		{name: "empty business name", mutate: func(c *TrackingConfig) { c.BusinessName = "" }, wantErr: true},
		{name: "grid too small", mutate: func(c *TrackingConfig) { c.GridSize = 0 }, wantErr: true},
		{name: "grid too large", mutate: func(c *TrackingConfig) { c.GridSize = 16 }, wantErr: true},
		{name: "latitude out of range", mutate: func(c *TrackingConfig) { c.CenterLat = 91 }, wantErr: true},
		{name: "longitude out of range", mutate: func(c *TrackingConfig) { c.CenterLng = -181 }, wantErr: true},
		{name: "zero radius", mutate: func(c *TrackingConfig) { c.RadiusMiles = 0 }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGridPoints(t *testing.T) {
	cfg := TrackingConfig{GridSize: 7}
	if got := cfg.GridPoints(); got != 49 {
		t.Errorf("GridPoints = %d, want 49", got)
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	testCases := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusComplete, true},
		{JobStatusFailed, true},
	}
	for _, tc := range testCases {
		if got := tc.status.IsTerminal(); got != tc.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

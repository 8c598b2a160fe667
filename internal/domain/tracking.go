package domain

import (
	"errors"
	"fmt"
	"time"
)

// TrackingConfig describes one geo-grid rank-tracking setup for an account:
// the business being tracked and the grid of map points to probe.
type TrackingConfig struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	AccountID    string    `gorm:"type:text;not null;index:idx_configs_account" json:"account_id"`
	BusinessName string    `gorm:"type:text;not null" json:"business_name"`
	Domain       string    `gorm:"type:text" json:"domain,omitempty"`
	GridSize     int       `gorm:"not null;default:5" json:"grid_size"`
	CenterLat    float64   `gorm:"not null" json:"center_lat"`
	CenterLng    float64   `gorm:"not null" json:"center_lng"`
	RadiusMiles  float64   `gorm:"not null;default:5" json:"radius_miles"`
	Enabled      bool      `gorm:"not null;default:true" json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for TrackingConfig.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (TrackingConfig) TableName() string {
	return "tracking_configs"
}

// GridPoints returns the number of map points probed per keyword.
func (c *TrackingConfig) GridPoints() int {
	return c.GridSize * c.GridSize
}

// Validate checks that the config is well-formed before it reaches the
// executor. Malformed historical rows fail here rather than propagating
// bad values into external API calls.
// Parameters: none.
// Returns:
//   - error: non-nil describing the first violated constraint.
func (c *TrackingConfig) Validate() error {
	if c.BusinessName == "" {
		return errors.New("tracking config has empty business name")
	}
	if c.GridSize < 1 || c.GridSize > 15 {
		return fmt.Errorf("tracking config grid size %d out of range [1,15]", c.GridSize)
	}
	if c.CenterLat < -90 || c.CenterLat > 90 {
		return fmt.Errorf("tracking config latitude %f out of range", c.CenterLat)
	}
	if c.CenterLng < -180 || c.CenterLng > 180 {
		return fmt.Errorf("tracking config longitude %f out of range", c.CenterLng)
	}
	if c.RadiusMiles <= 0 {
		return fmt.Errorf("tracking config radius %f must be positive", c.RadiusMiles)
	}
	return nil
}

// Keyword is one tracked search phrase belonging to a tracking config.
type Keyword struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	ConfigID  string    `gorm:"type:text;not null;index:idx_keywords_config" json:"config_id"`
	Phrase    string    `gorm:"type:text;not null" json:"phrase"`
	Enabled   bool      `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Keyword.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Keyword) TableName() string {
	return "keywords"
}

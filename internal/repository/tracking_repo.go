package repository

import (
	"context"
	"errors"

	"github.com/sammy/rankgrid/internal/domain"
	"gorm.io/gorm"
)

// TrackingRepository handles tracking config and keyword reads for the
// queue processor and the rank-check producer.
type TrackingRepository struct {
	db *gorm.DB
}

// NewTrackingRepository creates a new TrackingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TrackingRepository: repository instance bound to db.
func NewTrackingRepository(db *gorm.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

// CreateConfig inserts a tracking config.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cfg: config record to persist.
// Returns:
//   - error: non-nil if validation or the insert fails.
func (r *TrackingRepository) CreateConfig(ctx context.Context, cfg *domain.TrackingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(cfg).Error
}

// GetConfig retrieves a tracking config by ID and validates it, so malformed
// historical rows fail fast here instead of propagating into the executor.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: config ID.
// Returns:
//   - *domain.TrackingConfig: validated config if found.
//   - error: domain.ErrConfigNotFound if no row exists; a validation error
//     if the stored row is malformed.
func (r *TrackingRepository) GetConfig(ctx context.Context, id string) (*domain.TrackingConfig, error) {
	var cfg domain.TrackingConfig
	if err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateKeyword inserts a keyword for a config.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kw: keyword record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *TrackingRepository) CreateKeyword(ctx context.Context, kw *domain.Keyword) error {
	return r.db.WithContext(ctx).Create(kw).Error
}

// ListKeywords retrieves keywords for a config. An empty ids list means all
// enabled keywords for the config, matching the job contract where an empty
// KeywordIDs selects everything.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - configID: config owning the keywords.
//   - ids: optional subset of keyword IDs.
// Returns:
//   - []domain.Keyword: matching keywords.
//   - error: non-nil if the query fails.
func (r *TrackingRepository) ListKeywords(ctx context.Context, configID string, ids []string) ([]domain.Keyword, error) {
	query := r.db.WithContext(ctx).Where("config_id = ? AND enabled = ?", configID, true)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	var keywords []domain.Keyword
	if err := query.Order("created_at ASC").Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

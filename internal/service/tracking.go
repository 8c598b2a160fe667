package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
)

// TrackingService manages tracking configs and their keywords.
type TrackingService struct {
	trackingRepo *repository.TrackingRepository
	log          *logger.Logger
}

// NewTrackingService creates a new tracking service.
// Parameters:
//   - trackingRepo: tracking config store.
//   - log: logger instance.
// Returns:
//   - *TrackingService: initialized service.
func NewTrackingService(trackingRepo *repository.TrackingRepository, log *logger.Logger) *TrackingService {
	return &TrackingService{trackingRepo: trackingRepo, log: log}
}

// CreateConfig validates and persists a new tracking config for the account.
// Parameters:
//   - ctx: request context.
//   - accountID: owning account.
//   - cfg: config to create; ID and AccountID are filled here.
// Returns:
//   - *domain.TrackingConfig: the persisted config.
//   - error: validation error or a persistence failure.
func (s *TrackingService) CreateConfig(ctx context.Context, accountID string, cfg *domain.TrackingConfig) (*domain.TrackingConfig, error) {
	ctx = logger.SetAccountID(ctx, accountID)

	cfg.ID = uuid.New().String()
	cfg.AccountID = accountID
	cfg.Enabled = true

	if err := s.trackingRepo.CreateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "Created tracking config %s: business=%q, grid=%dx%d",
		cfg.ID, cfg.BusinessName, cfg.GridSize, cfg.GridSize)
	return cfg, nil
}

// GetConfig retrieves a config, scoped to the requesting account.
// Parameters:
//   - ctx: request context.
//   - accountID: requesting account.
//   - configID: config ID.
// Returns:
//   - *domain.TrackingConfig: the config if found and owned by the account.
//   - error: domain.ErrConfigNotFound otherwise.
func (s *TrackingService) GetConfig(ctx context.Context, accountID, configID string) (*domain.TrackingConfig, error) {
	cfg, err := s.trackingRepo.GetConfig(ctx, configID)
	if err != nil {
		return nil, err
	}
	if cfg.AccountID != accountID {
		return nil, domain.ErrConfigNotFound
	}
	return cfg, nil
}

// AddKeyword attaches a keyword to one of the account's configs.
// Parameters:
//   - ctx: request context.
//   - accountID: requesting account.
//   - configID: config to attach the keyword to.
//   - phrase: search phrase to track.
// Returns:
//   - *domain.Keyword: the persisted keyword.
//   - error: domain.ErrConfigNotFound if the config is missing or foreign.
func (s *TrackingService) AddKeyword(ctx context.Context, accountID, configID, phrase string) (*domain.Keyword, error) {
	if phrase == "" {
		return nil, fmt.Errorf("keyword phrase must not be empty")
	}
	if _, err := s.GetConfig(ctx, accountID, configID); err != nil {
		return nil, err
	}

	kw := &domain.Keyword{
		ID:       uuid.New().String(),
		ConfigID: configID,
		Phrase:   phrase,
		Enabled:  true,
	}
	if err := s.trackingRepo.CreateKeyword(ctx, kw); err != nil {
		return nil, err
	}
	return kw, nil
}

// ListKeywords retrieves the enabled keywords of one of the account's configs.
// Parameters:
//   - ctx: request context.
//   - accountID: requesting account.
//   - configID: config owning the keywords.
// Returns:
//   - []domain.Keyword: enabled keywords.
//   - error: domain.ErrConfigNotFound if the config is missing or foreign.
func (s *TrackingService) ListKeywords(ctx context.Context, accountID, configID string) ([]domain.Keyword, error) {
	if _, err := s.GetConfig(ctx, accountID, configID); err != nil {
		return nil, err
	}
	return s.trackingRepo.ListKeywords(ctx, configID, nil)
}

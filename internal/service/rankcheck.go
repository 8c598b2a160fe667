package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
)

// RankCheckService is the producer side of the queue: it prices a rank-check
// request, debits the account, and enqueues the job. Debit-then-enqueue order
// means a crash between the two leaves a debit with no job; the idempotency
// key ties the entry to the would-be job ID for reconciliation.
type RankCheckService struct {
	jobRepo         *repository.JobRepository
	ledgerRepo      *repository.LedgerRepository
	trackingRepo    *repository.TrackingRepository
	log             *logger.Logger
	creditsPerCheck int
}

// NewRankCheckService creates a new rank-check producer service.
// Parameters:
//   - jobRepo: job store.
//   - ledgerRepo: credit ledger.
//   - trackingRepo: tracking config reads.
//   - log: logger instance.
//   - creditsPerCheck: credit price of one grid-point check.
// Returns:
//   - *RankCheckService: initialized service.
func NewRankCheckService(
	jobRepo *repository.JobRepository,
	ledgerRepo *repository.LedgerRepository,
	trackingRepo *repository.TrackingRepository,
	log *logger.Logger,
	creditsPerCheck int,
) *RankCheckService {
	if creditsPerCheck <= 0 {
		creditsPerCheck = 1
	}
	return &RankCheckService{
		jobRepo:         jobRepo,
		ledgerRepo:      ledgerRepo,
		trackingRepo:    trackingRepo,
		log:             log,
		creditsPerCheck: creditsPerCheck,
	}
}

// debitKeyFor derives the ledger idempotency key for a job's debit.
func debitKeyFor(jobID string) string {
	return "rankcheck:" + jobID
}

// RequestChecks prices and enqueues a rank-check job for the given config.
//
// Cost is grid points x keywords x credits per check, debited up front under
// a job-scoped idempotency key. An empty keywordIDs list selects every
// enabled keyword of the config. If the enqueue fails after the debit, the
// debit is refunded best-effort.
//
// Parameters:
//   - ctx: request context.
//   - accountID: account being charged.
//   - configID: tracking config to run checks against.
//   - keywordIDs: optional subset of the config's keywords.
// Returns:
//   - *domain.RankCheckJob: the enqueued pending job.
//   - error: domain.ErrConfigNotFound if the config does not exist or belongs
//     to another account; *domain.InsufficientCreditsError if the balance
//     cannot cover the cost.
func (s *RankCheckService) RequestChecks(ctx context.Context, accountID, configID string, keywordIDs []string) (*domain.RankCheckJob, error) {
	ctx = logger.SetAccountID(ctx, accountID)

	cfg, err := s.trackingRepo.GetConfig(ctx, configID)
	if err != nil {
		return nil, err
	}
	// Ownership check; a foreign config is indistinguishable from a missing one.
	if cfg.AccountID != accountID {
		return nil, domain.ErrConfigNotFound
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("tracking config %s is disabled", configID)
	}

	keywords, err := s.trackingRepo.ListKeywords(ctx, configID, keywordIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve keywords: %w", err)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no enabled keywords for config %s", configID)
	}

	totalChecks := len(keywords) * cfg.GridPoints()
	credits := totalChecks * s.creditsPerCheck

	jobID := uuid.New().String()
	debitKey := debitKeyFor(jobID)

	if err := s.ledgerRepo.EnsureBalance(ctx, accountID); err != nil {
		return nil, fmt.Errorf("failed to ensure balance: %w", err)
	}

	_, err = s.ledgerRepo.Debit(ctx, accountID, credits, &repository.DebitParams{
		IdempotencyKey: debitKey,
		FeatureType:    domain.FeatureRankCheck,
		FeatureMetadata: domain.JSONMap{
			"job_id":    jobID,
			"config_id": configID,
			"keywords":  len(keywords),
			"checks":    totalChecks,
		},
		Description: fmt.Sprintf("Rank checks for %s (%d checks)", cfg.BusinessName, totalChecks),
	})
	if err != nil {
		return nil, err
	}

	job := &domain.RankCheckJob{
		ID:                    jobID,
		AccountID:             accountID,
		ConfigID:              configID,
		KeywordIDs:            domain.StringList(keywordIDs),
		TotalChecks:           totalChecks,
		CreditsUsed:           credits,
		CreditsIdempotencyKey: debitKey,
	}
	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		s.rollbackDebit(ctx, accountID, credits, debitKey)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	logger.With(logger.Fields{
		logger.FieldJobID:   jobID,
		logger.FieldCredits: credits,
		logger.FieldCount:   totalChecks,
	}).Info(ctx, "Enqueued rank check job")

	return job, nil
}

// rollbackDebit refunds a debit whose job never made it into the store.
func (s *RankCheckService) rollbackDebit(ctx context.Context, accountID string, credits int, debitKey string) {
	_, err := s.ledgerRepo.RefundFeature(ctx, accountID, credits, debitKey, &repository.DebitParams{
		FeatureType: domain.FeatureRankCheck,
		FeatureMetadata: domain.JSONMap{
			"reason": "enqueue failed",
		},
		Description: "Refund for rank check job that failed to enqueue",
	})
	if err != nil {
		logger.With(logger.Fields{logger.FieldCredits: credits}).
			Error(ctx, "Failed to roll back debit %s, manual reconciliation needed: %v", debitKey, err)
	}
}

// GetJob retrieves a job, scoped to the requesting account.
// Parameters:
//   - ctx: request context.
//   - accountID: requesting account.
//   - jobID: job ID.
// Returns:
//   - *domain.RankCheckJob: the job if found and owned by the account.
//   - error: domain.ErrJobNotFound otherwise.
func (s *RankCheckService) GetJob(ctx context.Context, accountID, jobID string) (*domain.RankCheckJob, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.AccountID != accountID {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

// ListJobs retrieves an account's jobs, newest first.
// Parameters:
//   - ctx: request context.
//   - accountID: requesting account.
//   - status: optional status filter; empty means all.
//   - limit: max rows, clamped to 100.
//   - offset: pagination offset.
// Returns:
//   - []domain.RankCheckJob: matching jobs.
//   - error: non-nil if the query fails.
func (s *RankCheckService) ListJobs(ctx context.Context, accountID string, status domain.JobStatus, limit, offset int) ([]domain.RankCheckJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.jobRepo.ListByAccount(ctx, accountID, status, limit, offset)
}

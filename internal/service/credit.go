package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
)

// CreditService exposes the account-facing credit surface: balance reads,
// ledger history, and grants. Consumption goes through the producer and
// dispatcher, never through here.
type CreditService struct {
	ledgerRepo *repository.LedgerRepository
	log        *logger.Logger
}

// NewCreditService creates a new credit service.
// Parameters:
//   - ledgerRepo: credit ledger.
//   - log: logger instance.
// Returns:
//   - *CreditService: initialized service.
func NewCreditService(ledgerRepo *repository.LedgerRepository, log *logger.Logger) *CreditService {
	return &CreditService{ledgerRepo: ledgerRepo, log: log}
}

// GetBalance retrieves an account's balance, materializing a zero balance for
// accounts that have never touched credits.
// Parameters:
//   - ctx: request context.
//   - accountID: account to look up.
// Returns:
//   - *domain.CreditBalance: current balance.
//   - error: non-nil if the lookup fails.
func (s *CreditService) GetBalance(ctx context.Context, accountID string) (*domain.CreditBalance, error) {
	balance, err := s.ledgerRepo.GetBalance(ctx, accountID)
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return &domain.CreditBalance{AccountID: accountID}, nil
	}
	return balance, err
}

// GetHistory retrieves an account's ledger entries, newest first.
// Parameters:
//   - ctx: request context.
//   - accountID: account to list entries for.
//   - limit: max rows, clamped to 100.
//   - offset: pagination offset.
// Returns:
//   - []domain.LedgerEntry: matching entries.
//   - error: non-nil if the query fails.
func (s *CreditService) GetHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledgerRepo.ListEntries(ctx, accountID, limit, offset)
}

// GrantCredits credits an account under the caller's idempotency key, used by
// plan renewals and top-up fulfillment.
// Parameters:
//   - ctx: request context.
//   - accountID: account to credit.
//   - amount: credits to add, must be positive.
//   - includedPool: true for plan-included credits, false for purchased.
//   - idempotencyKey: caller-supplied key making the grant replay-safe.
//   - description: human-readable reason recorded on the entry.
// Returns:
//   - *domain.CreditBalance: balance after the grant.
//   - error: non-nil if the grant fails.
func (s *CreditService) GrantCredits(ctx context.Context, accountID string, amount int, includedPool bool, idempotencyKey, description string) (*domain.CreditBalance, error) {
	ctx = logger.SetAccountID(ctx, accountID)

	if idempotencyKey == "" {
		return nil, fmt.Errorf("grant requires an idempotency key")
	}
	if err := s.ledgerRepo.EnsureBalance(ctx, accountID); err != nil {
		return nil, fmt.Errorf("failed to ensure balance: %w", err)
	}

	result, err := s.ledgerRepo.Grant(ctx, accountID, amount, includedPool, &repository.DebitParams{
		IdempotencyKey: idempotencyKey,
		FeatureType:    domain.FeatureGrant,
		Description:    description,
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		logger.CtxDebug(ctx, "Grant replayed for key %s", idempotencyKey)
	} else {
		logger.With(logger.Fields{logger.FieldCredits: amount}).Info(ctx, "Granted credits")
	}
	return result.Balance, nil
}

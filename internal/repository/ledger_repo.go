package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sammy/rankgrid/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository owns the append-only credit ledger and the materialized
// balance rows derived from it. All balance mutations go through Debit and
// Refund, which serialize on the account's balance row inside a transaction.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *LedgerRepository: repository instance bound to db.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// DebitParams carries the bookkeeping attributes of a debit or refund.
type DebitParams struct {
	IdempotencyKey  string
	FeatureType     domain.FeatureType
	FeatureMetadata domain.JSONMap
	Description     string
}

// LedgerResult is the outcome of a debit or refund.
type LedgerResult struct {
	Entry    *domain.LedgerEntry
	Balance  *domain.CreditBalance
	Replayed bool
}

// EnsureBalance idempotently creates a zero balance row for the account if
// none exists. No-op when the row is already present.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to ensure a balance row for.
// Returns:
//   - error: non-nil if the insert fails.
func (r *LedgerRepository) EnsureBalance(ctx context.Context, accountID string) error {
	balance := &domain.CreditBalance{AccountID: accountID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(balance).Error
}

// GetBalance retrieves the balance row for an account.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to look up.
// Returns:
//   - *domain.CreditBalance: balance row if found.
//   - error: domain.ErrBalanceNotFound if no row exists.
func (r *LedgerRepository) GetBalance(ctx context.Context, accountID string) (*domain.CreditBalance, error) {
	var balance domain.CreditBalance
	if err := r.db.WithContext(ctx).First(&balance, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// Grant credits an account, consumed by plan renewals and top-ups. Positive
// entries land in the purchased pool unless includedPool is set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to credit.
//   - amount: credits to add, must be positive.
//   - includedPool: true to grant into the included pool.
//   - params: ledger bookkeeping attributes.
// Returns:
//   - *LedgerResult: written entry and resulting balance.
//   - error: non-nil if the transaction fails.
func (r *LedgerRepository) Grant(ctx context.Context, accountID string, amount int, includedPool bool, params *DebitParams) (*LedgerResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	purchased, included := amount, 0
	if includedPool {
		purchased, included = 0, amount
	}
	return r.applyEntry(ctx, accountID, amount, purchased, included, params)
}

// Debit atomically consumes credits from an account.
//
// If a ledger entry with the same idempotency key already exists, the call is
// an idempotent replay: the original entry and the current balance are
// returned and nothing is mutated. Otherwise the balance row is locked, the
// sufficient-funds check runs against the locked row, purchased credits are
// consumed before included credits, and the ledger entry plus balance update
// are written in one transaction.
//
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to debit.
//   - amount: credits to consume, must be positive.
//   - params: ledger bookkeeping attributes; IdempotencyKey is required.
// Returns:
//   - *LedgerResult: entry written (or replayed) and the resulting balance.
//   - error: *domain.InsufficientCreditsError if the balance cannot cover
//     amount; domain.ErrBalanceNotFound if no balance row exists.
func (r *LedgerRepository) Debit(ctx context.Context, accountID string, amount int, params *DebitParams) (*LedgerResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	if params == nil || params.IdempotencyKey == "" {
		return nil, errors.New("debit requires an idempotency key")
	}

	var result *LedgerResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Idempotent replay: a second call with the same key is a no-op.
		if replay, err := r.findEntry(tx, params.IdempotencyKey); err != nil {
			return err
		} else if replay != nil {
			var balance domain.CreditBalance
			if err := tx.First(&balance, "account_id = ?", replay.AccountID).Error; err != nil {
				return err
			}
			result = &LedgerResult{Entry: replay, Balance: &balance, Replayed: true}
			return nil
		}

		balance, err := r.lockBalance(tx, accountID)
		if err != nil {
			return err
		}

		total := balance.TotalCredits()
		if total < amount {
			return &domain.InsufficientCreditsError{Required: amount, Available: total}
		}

		// Purchased credits drain before the renewing included pool.
		fromPurchased := min(amount, balance.PurchasedCredits)
		fromIncluded := amount - fromPurchased

		entry := &domain.LedgerEntry{
			ID:              uuid.New().String(),
			AccountID:       accountID,
			Delta:           -amount,
			PurchasedDelta:  -fromPurchased,
			IncludedDelta:   -fromIncluded,
			IdempotencyKey:  params.IdempotencyKey,
			FeatureType:     params.FeatureType,
			FeatureMetadata: params.FeatureMetadata,
			Description:     params.Description,
			CreatedAt:       time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		balance.PurchasedCredits -= fromPurchased
		balance.IncludedCredits -= fromIncluded
		if err := r.saveBalance(tx, balance); err != nil {
			return err
		}

		result = &LedgerResult{Entry: entry, Balance: balance}
		return nil
	})
	if err != nil {
		// Two concurrent debits with the same key race on the unique index;
		// the loser rolls back and replays the winner's entry.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.replay(ctx, params.IdempotencyKey)
		}
		return nil, err
	}
	return result, nil
}

// RefundFeature restores credits for a previously recorded debit.
//
// The refund key is derived from the original debit's key, so a refund can
// never be applied twice for one debit: if an entry with the derived key
// already exists the call is an idempotent no-op. The refund cannot exceed
// the original debit, and the credits are restored to the exact pools the
// debit drew from (inverse split), purchased pool first on partial refunds.
//
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to credit.
//   - amount: credits to restore, must be positive.
//   - originalKey: idempotency key of the debit being refunded.
//   - params: ledger bookkeeping attributes; IdempotencyKey is ignored and
//     replaced with the derived refund key.
// Returns:
//   - *LedgerResult: entry written (or replayed) and the resulting balance.
//   - error: *domain.UnknownDebitError if no debit exists under originalKey;
//     *domain.RefundExceedsDebitError if amount exceeds the original debit.
func (r *LedgerRepository) RefundFeature(ctx context.Context, accountID string, amount int, originalKey string, params *DebitParams) (*LedgerResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive, got %d", amount)
	}
	refundKey := domain.RefundKeyFor(originalKey)

	var result *LedgerResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replay, err := r.findEntry(tx, refundKey); err != nil {
			return err
		} else if replay != nil {
			var balance domain.CreditBalance
			if err := tx.First(&balance, "account_id = ?", replay.AccountID).Error; err != nil {
				return err
			}
			result = &LedgerResult{Entry: replay, Balance: &balance, Replayed: true}
			return nil
		}

		debit, err := r.findEntry(tx, originalKey)
		if err != nil {
			return err
		}
		if debit == nil {
			return &domain.UnknownDebitError{IdempotencyKey: originalKey}
		}
		debited := -debit.Delta
		if amount > debited {
			return &domain.RefundExceedsDebitError{Requested: amount, Debited: debited}
		}

		balance, err := r.lockBalance(tx, accountID)
		if err != nil {
			return err
		}

		// Replay the inverse of the debit's pool split. Partial refunds
		// restore the purchased pool first, capped at what was drawn.
		toPurchased := min(amount, -debit.PurchasedDelta)
		toIncluded := amount - toPurchased

		entry := &domain.LedgerEntry{
			ID:              uuid.New().String(),
			AccountID:       accountID,
			Delta:           amount,
			PurchasedDelta:  toPurchased,
			IncludedDelta:   toIncluded,
			IdempotencyKey:  refundKey,
			FeatureType:     params.FeatureType,
			FeatureMetadata: params.FeatureMetadata,
			Description:     params.Description,
			CreatedAt:       time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		balance.PurchasedCredits += toPurchased
		balance.IncludedCredits += toIncluded
		if err := r.saveBalance(tx, balance); err != nil {
			return err
		}

		result = &LedgerResult{Entry: entry, Balance: balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.replay(ctx, refundKey)
		}
		return nil, err
	}
	return result, nil
}

// ListEntries retrieves ledger entries for an account, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to list entries for.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.LedgerEntry: matching entries.
//   - error: non-nil if the query fails.
func (r *LedgerRepository) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// applyEntry writes a positive ledger entry and applies it to the balance.
func (r *LedgerRepository) applyEntry(ctx context.Context, accountID string, amount, purchased, included int, params *DebitParams) (*LedgerResult, error) {
	if params == nil || params.IdempotencyKey == "" {
		return nil, errors.New("ledger entry requires an idempotency key")
	}
	var result *LedgerResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replay, err := r.findEntry(tx, params.IdempotencyKey); err != nil {
			return err
		} else if replay != nil {
			var balance domain.CreditBalance
			if err := tx.First(&balance, "account_id = ?", replay.AccountID).Error; err != nil {
				return err
			}
			result = &LedgerResult{Entry: replay, Balance: &balance, Replayed: true}
			return nil
		}

		balance, err := r.lockBalance(tx, accountID)
		if err != nil {
			return err
		}

		entry := &domain.LedgerEntry{
			ID:              uuid.New().String(),
			AccountID:       accountID,
			Delta:           amount,
			PurchasedDelta:  purchased,
			IncludedDelta:   included,
			IdempotencyKey:  params.IdempotencyKey,
			FeatureType:     params.FeatureType,
			FeatureMetadata: params.FeatureMetadata,
			Description:     params.Description,
			CreatedAt:       time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		balance.PurchasedCredits += purchased
		balance.IncludedCredits += included
		if err := r.saveBalance(tx, balance); err != nil {
			return err
		}

		result = &LedgerResult{Entry: entry, Balance: balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.replay(ctx, params.IdempotencyKey)
		}
		return nil, err
	}
	return result, nil
}

// findEntry returns the ledger entry with the given idempotency key, or nil.
func (r *LedgerRepository) findEntry(tx *gorm.DB, idempotencyKey string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := tx.First(&entry, "idempotency_key = ?", idempotencyKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// lockBalance reads the balance row under a row-level lock so no two
// debits/refunds for the same account can interleave their read-modify-write.
func (r *LedgerRepository) lockBalance(tx *gorm.DB, accountID string) (*domain.CreditBalance, error) {
	var balance domain.CreditBalance
	q := tx
	if supportsRowLocking(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&balance, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// saveBalance persists the mutated pools of a balance row.
func (r *LedgerRepository) saveBalance(tx *gorm.DB, balance *domain.CreditBalance) error {
	return tx.Model(&domain.CreditBalance{}).
		Where("account_id = ?", balance.AccountID).
		Updates(map[string]interface{}{
			"purchased_credits": balance.PurchasedCredits,
			"included_credits":  balance.IncludedCredits,
		}).Error
}

// replay re-reads an entry written by a concurrent transaction that won the
// unique-key race, returning it as an idempotent result.
func (r *LedgerRepository) replay(ctx context.Context, idempotencyKey string) (*LedgerResult, error) {
	entry, err := r.findEntry(r.db.WithContext(ctx), idempotencyKey)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("ledger entry for key %q vanished after duplicate-key conflict", idempotencyKey)
	}
	var balance domain.CreditBalance
	if err := r.db.WithContext(ctx).First(&balance, "account_id = ?", entry.AccountID).Error; err != nil {
		return nil, err
	}
	return &LedgerResult{Entry: entry, Balance: &balance, Replayed: true}, nil
}

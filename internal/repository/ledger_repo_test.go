package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sammy/rankgrid/internal/domain"
)

func seedBalance(t *testing.T, repo *LedgerRepository, accountID string, purchased, included int) {
	t.Helper()
	ctx := context.Background()

	if err := repo.EnsureBalance(ctx, accountID); err != nil {
		t.Fatalf("EnsureBalance: %v", err)
	}
	if purchased > 0 {
		if _, err := repo.Grant(ctx, accountID, purchased, false, &DebitParams{
			IdempotencyKey: "seed-purchased-" + accountID,
			FeatureType:    domain.FeatureGrant,
		}); err != nil {
			t.Fatalf("Grant purchased: %v", err)
		}
	}
	if included > 0 {
		if _, err := repo.Grant(ctx, accountID, included, true, &DebitParams{
			IdempotencyKey: "seed-included-" + accountID,
			FeatureType:    domain.FeatureGrant,
		}); err != nil {
			t.Fatalf("Grant included: %v", err)
		}
	}
}

func TestDebitIdempotentReplay(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 100, 0)

	params := &DebitParams{
		IdempotencyKey: "rankcheck:job-1",
		FeatureType:    domain.FeatureRankCheck,
	}

	first, err := repo.Debit(ctx, "acct-1", 30, params)
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if first.Replayed {
		t.Error("first debit should not be a replay")
	}
	if first.Balance.TotalCredits() != 70 {
		t.Errorf("balance after first debit = %d, want 70", first.Balance.TotalCredits())
	}

	second, err := repo.Debit(ctx, "acct-1", 30, params)
	if err != nil {
		t.Fatalf("replayed debit: %v", err)
	}
	if !second.Replayed {
		t.Error("second debit with same key should be a replay")
	}
	if second.Entry.ID != first.Entry.ID {
		t.Errorf("replay returned a different entry: %s vs %s", second.Entry.ID, first.Entry.ID)
	}
	if second.Balance.TotalCredits() != 70 {
		t.Errorf("balance after replay = %d, want 70 (unchanged)", second.Balance.TotalCredits())
	}
}

func TestDebitInsufficientCredits(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 10, 5)

	_, err := repo.Debit(ctx, "acct-1", 20, &DebitParams{
		IdempotencyKey: "rankcheck:job-1",
		FeatureType:    domain.FeatureRankCheck,
	})
	var insufficient *domain.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Required != 20 || insufficient.Available != 15 {
		t.Errorf("error = required %d available %d, want 20/15", insufficient.Required, insufficient.Available)
	}

	// A failed debit writes nothing.
	balance, err := repo.GetBalance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.TotalCredits() != 15 {
		t.Errorf("balance after rejected debit = %d, want 15", balance.TotalCredits())
	}
	entries, err := repo.ListEntries(ctx, "acct-1", 10, 0)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	for _, e := range entries {
		if e.Delta < 0 {
			t.Errorf("unexpected debit entry %s after rejection", e.ID)
		}
	}
}

func TestDebitDrainsPurchasedFirst(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 10, 50)

	result, err := repo.Debit(ctx, "acct-1", 25, &DebitParams{
		IdempotencyKey: "rankcheck:job-1",
		FeatureType:    domain.FeatureRankCheck,
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	if result.Entry.PurchasedDelta != -10 || result.Entry.IncludedDelta != -15 {
		t.Errorf("entry split = purchased %d included %d, want -10/-15",
			result.Entry.PurchasedDelta, result.Entry.IncludedDelta)
	}
	if result.Balance.PurchasedCredits != 0 || result.Balance.IncludedCredits != 35 {
		t.Errorf("balance = purchased %d included %d, want 0/35",
			result.Balance.PurchasedCredits, result.Balance.IncludedCredits)
	}
}

func TestRefundRestoresOriginalPools(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 10, 50)

	if _, err := repo.Debit(ctx, "acct-1", 25, &DebitParams{
		IdempotencyKey: "rankcheck:job-1",
		FeatureType:    domain.FeatureRankCheck,
	}); err != nil {
		t.Fatalf("debit: %v", err)
	}

	result, err := repo.RefundFeature(ctx, "acct-1", 25, "rankcheck:job-1", &DebitParams{
		FeatureType: domain.FeatureRankCheck,
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	// Full refund restores the exact split the debit drew.
	if result.Entry.PurchasedDelta != 10 || result.Entry.IncludedDelta != 15 {
		t.Errorf("refund split = purchased %d included %d, want 10/15",
			result.Entry.PurchasedDelta, result.Entry.IncludedDelta)
	}
	if result.Balance.PurchasedCredits != 10 || result.Balance.IncludedCredits != 50 {
		t.Errorf("balance = purchased %d included %d, want 10/50",
			result.Balance.PurchasedCredits, result.Balance.IncludedCredits)
	}
}

func TestRefundIdempotent(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 100, 0)

	if _, err := repo.Debit(ctx, "acct-1", 40, &DebitParams{
		IdempotencyKey: "rankcheck:job-1",
		FeatureType:    domain.FeatureRankCheck,
	}); err != nil {
		t.Fatalf("debit: %v", err)
	}

	first, err := repo.RefundFeature(ctx, "acct-1", 40, "rankcheck:job-1", &DebitParams{
		FeatureType: domain.FeatureRankCheck,
	})
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if first.Replayed {
		t.Error("first refund should not be a replay")
	}

	second, err := repo.RefundFeature(ctx, "acct-1", 40, "rankcheck:job-1", &DebitParams{
		FeatureType: domain.FeatureRankCheck,
	})
	if err != nil {
		t.Fatalf("second refund: %v", err)
	}
	if !second.Replayed {
		t.Error("second refund should be an idempotent replay")
	}
	if second.Balance.TotalCredits() != 100 {
		t.Errorf("balance after double refund = %d, want 100", second.Balance.TotalCredits())
	}
}

func TestRefundErrors(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 100, 0)

	if _, err := repo.Debit(ctx, "acct-1", 40, &DebitParams{
		IdempotencyKey: "rankcheck:job-1",
		FeatureType:    domain.FeatureRankCheck,
	}); err != nil {
		t.Fatalf("debit: %v", err)
	}

	t.Run("unknown debit", func(t *testing.T) {
		_, err := repo.RefundFeature(ctx, "acct-1", 40, "rankcheck:no-such-job", &DebitParams{
			FeatureType: domain.FeatureRankCheck,
		})
		var unknown *domain.UnknownDebitError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownDebitError, got %v", err)
		}
	})

	t.Run("exceeds debit", func(t *testing.T) {
		_, err := repo.RefundFeature(ctx, "acct-1", 41, "rankcheck:job-1", &DebitParams{
			FeatureType: domain.FeatureRankCheck,
		})
		var exceeds *domain.RefundExceedsDebitError
		if !errors.As(err, &exceeds) {
			t.Fatalf("expected RefundExceedsDebitError, got %v", err)
		}
	})
}

func TestConcurrentDebitsSameKey(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	seedBalance(t, repo, "acct-1", 100, 0)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*LedgerResult, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Debit(ctx, "acct-1", 30, &DebitParams{
				IdempotencyKey: "rankcheck:job-1",
				FeatureType:    domain.FeatureRankCheck,
			})
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !results[i].Replayed {
			applied++
		}
	}
	if applied != 1 {
		t.Errorf("debit applied %d times, want exactly 1", applied)
	}

	balance, err := repo.GetBalance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.TotalCredits() != 70 {
		t.Errorf("balance = %d, want 70 (single debit)", balance.TotalCredits())
	}
}

func TestGrantIdempotent(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.EnsureBalance(ctx, "acct-1"); err != nil {
		t.Fatalf("EnsureBalance: %v", err)
	}

	params := &DebitParams{
		IdempotencyKey: "renewal:2026-09",
		FeatureType:    domain.FeatureGrant,
	}
	if _, err := repo.Grant(ctx, "acct-1", 500, true, params); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	second, err := repo.Grant(ctx, "acct-1", 500, true, params)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if !second.Replayed {
		t.Error("second grant with same key should be a replay")
	}
	if second.Balance.IncludedCredits != 500 {
		t.Errorf("included credits = %d, want 500", second.Balance.IncludedCredits)
	}
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
)

func newRankCheckService(env *testEnv) *RankCheckService {
	return NewRankCheckService(env.jobs, env.ledger, env.tracking, logger.GetDefault(), 1)
}

func TestRequestChecksDebitsAndEnqueues(t *testing.T) {
	env := newTestEnv(t)
	svc := newRankCheckService(env)
	ctx := context.Background()

	job, err := svc.RequestChecks(ctx, "acct-1", "cfg-1", nil)
	if err != nil {
		t.Fatalf("RequestChecks: %v", err)
	}

	// 2 keywords x 3x3 grid at 1 credit per check.
	if job.TotalChecks != 18 {
		t.Errorf("total_checks = %d, want 18", job.TotalChecks)
	}
	if job.CreditsUsed != 18 {
		t.Errorf("credits_used = %d, want 18", job.CreditsUsed)
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.CreditsIdempotencyKey != debitKeyFor(job.ID) {
		t.Errorf("idempotency key = %q, want %q", job.CreditsIdempotencyKey, debitKeyFor(job.ID))
	}

	if got := env.balance(t); got != 1000-18 {
		t.Errorf("balance = %d, want %d", got, 1000-18)
	}

	stored, err := env.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domain.JobStatusPending {
		t.Errorf("stored status = %s, want pending", stored.Status)
	}
}

func TestRequestChecksInsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	svc := newRankCheckService(env)
	ctx := context.Background()

	// Drain the balance to below one job's cost.
	if _, err := env.ledger.Debit(ctx, "acct-1", 990, &repository.DebitParams{
		IdempotencyKey: "drain",
		FeatureType:    domain.FeatureRankCheck,
	}); err != nil {
		t.Fatalf("drain debit: %v", err)
	}

	_, err := svc.RequestChecks(ctx, "acct-1", "cfg-1", nil)
	var insufficient *domain.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Required != 18 || insufficient.Available != 10 {
		t.Errorf("error = required %d available %d, want 18/10", insufficient.Required, insufficient.Available)
	}

	// Rejection leaves no job behind.
	jobs, err := env.jobs.ListByAccount(ctx, "acct-1", "", 10, 0)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("found %d jobs after rejected request, want 0", len(jobs))
	}
}

func TestRequestChecksKeywordSubset(t *testing.T) {
	env := newTestEnv(t)
	svc := newRankCheckService(env)

	job, err := svc.RequestChecks(context.Background(), "acct-1", "cfg-1", []string{"kw-0"})
	if err != nil {
		t.Fatalf("RequestChecks: %v", err)
	}
	// 1 keyword x 3x3 grid.
	if job.TotalChecks != 9 {
		t.Errorf("total_checks = %d, want 9", job.TotalChecks)
	}
	if got := env.balance(t); got != 1000-9 {
		t.Errorf("balance = %d, want %d", got, 1000-9)
	}
}

func TestRequestChecksForeignConfig(t *testing.T) {
	env := newTestEnv(t)
	svc := newRankCheckService(env)

	_, err := svc.RequestChecks(context.Background(), "acct-2", "cfg-1", nil)
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound for foreign config, got %v", err)
	}
}

func TestGetJobScopedToAccount(t *testing.T) {
	env := newTestEnv(t)
	svc := newRankCheckService(env)
	ctx := context.Background()

	job, err := svc.RequestChecks(ctx, "acct-1", "cfg-1", nil)
	if err != nil {
		t.Fatalf("RequestChecks: %v", err)
	}

	if _, err := svc.GetJob(ctx, "acct-1", job.ID); err != nil {
		t.Errorf("owner GetJob: %v", err)
	}
	if _, err := svc.GetJob(ctx, "acct-2", job.ID); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("foreign GetJob should return ErrJobNotFound, got %v", err)
	}
}

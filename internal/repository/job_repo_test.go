package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sammy/rankgrid/internal/domain"
)

func enqueueJobs(t *testing.T, repo *JobRepository, n int) []string {
	t.Helper()
	ctx := context.Background()

	ids := make([]string, 0, n)
	base := time.Now().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		job := &domain.RankCheckJob{
			ID:        fmt.Sprintf("job-%d", i),
			AccountID: "acct-1",
			ConfigID:  "cfg-1",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue job-%d: %v", i, err)
		}
		ids = append(ids, job.ID)
	}
	return ids
}

func TestClaimPendingBatchFIFO(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	ids := enqueueJobs(t, repo, 5)

	claimed, err := repo.ClaimPendingBatch(ctx, 3)
	if err != nil {
		t.Fatalf("ClaimPendingBatch: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("claimed %d jobs, want 3", len(claimed))
	}
	for i, job := range claimed {
		if job.ID != ids[i] {
			t.Errorf("claimed[%d] = %s, want %s (oldest first)", i, job.ID, ids[i])
		}
		if job.Status != domain.JobStatusProcessing {
			t.Errorf("claimed[%d] status = %s, want processing", i, job.Status)
		}
		if job.StartedAt == nil {
			t.Errorf("claimed[%d] has no StartedAt", i)
		}
	}
}

func TestClaimPendingBatchNoDoubleClaim(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	enqueueJobs(t, repo, 4)

	first, err := repo.ClaimPendingBatch(ctx, 10)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := repo.ClaimPendingBatch(ctx, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(first) != 4 {
		t.Errorf("first claim got %d jobs, want 4", len(first))
	}
	if len(second) != 0 {
		t.Errorf("second claim got %d jobs, want 0", len(second))
	}
}

func TestClaimPendingBatchConcurrent(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	enqueueJobs(t, repo, 10)

	const claimers = 4
	var wg sync.WaitGroup
	claims := make([][]domain.RankCheckJob, claimers)
	errs := make([]error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claims[i], errs[i] = repo.ClaimPendingBatch(context.Background(), 10)
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	total := 0
	for i := 0; i < claimers; i++ {
		if errs[i] != nil {
			t.Fatalf("claimer %d: %v", i, errs[i])
		}
		for _, job := range claims[i] {
			seen[job.ID]++
			total++
		}
	}
	if total != 10 {
		t.Errorf("total claimed = %d, want 10", total)
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("job %s claimed %d times", id, n)
		}
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	enqueueJobs(t, repo, 1)

	claimed, err := repo.ClaimPendingBatch(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d jobs)", err, len(claimed))
	}
	jobID := claimed[0].ID

	ok, err := repo.MarkComplete(ctx, jobID, &CompletionUpdate{ChecksPerformed: 9, TotalChecks: 9})
	if err != nil || !ok {
		t.Fatalf("MarkComplete: ok=%v err=%v", ok, err)
	}

	// Completed jobs reject further transitions.
	ok, err = repo.MarkFailed(ctx, jobID, "late failure")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if ok {
		t.Error("MarkFailed on a complete job should be a no-op")
	}
	ok, err = repo.MarkComplete(ctx, jobID, &CompletionUpdate{})
	if err != nil {
		t.Fatalf("second MarkComplete: %v", err)
	}
	if ok {
		t.Error("double MarkComplete should be a no-op")
	}

	job, err := repo.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusComplete {
		t.Errorf("status = %s, want complete", job.Status)
	}
	if job.ChecksPerformed != 9 {
		t.Errorf("checks_performed = %d, want 9", job.ChecksPerformed)
	}
}

func TestMarkOnPendingJobIsNoOp(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	ids := enqueueJobs(t, repo, 1)

	ok, err := repo.MarkComplete(ctx, ids[0], &CompletionUpdate{})
	if err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if ok {
		t.Error("MarkComplete on a pending job should be a no-op")
	}
}

func TestReapStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	enqueueJobs(t, repo, 3)

	claimed, err := repo.ClaimPendingBatch(ctx, 2)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("claim: %v (%d jobs)", err, len(claimed))
	}

	// Backdate one claimed job past the threshold.
	staleStart := time.Now().Add(-time.Hour)
	if err := db.Model(&domain.RankCheckJob{}).
		Where("id = ?", claimed[0].ID).
		Update("started_at", staleStart).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	reaped, err := repo.ReapStale(ctx, 10*time.Minute, 10)
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if len(reaped) != 1 {
		t.Fatalf("reaped %d jobs, want 1", len(reaped))
	}
	if reaped[0].ID != claimed[0].ID {
		t.Errorf("reaped %s, want %s", reaped[0].ID, claimed[0].ID)
	}
	if reaped[0].Error != StaleJobError {
		t.Errorf("reaped error = %q, want %q", reaped[0].Error, StaleJobError)
	}

	job, err := repo.GetByID(ctx, reaped[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}

	// The fresh processing job and the pending job are untouched.
	fresh, err := repo.GetByID(ctx, claimed[1].ID)
	if err != nil {
		t.Fatalf("GetByID fresh: %v", err)
	}
	if fresh.Status != domain.JobStatusProcessing {
		t.Errorf("fresh job status = %s, want processing", fresh.Status)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), "no-such-job")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestListByAccount(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	enqueueJobs(t, repo, 5)

	// A job for another account must not leak into the listing.
	other := &domain.RankCheckJob{ID: "job-other", AccountID: "acct-2", ConfigID: "cfg-9"}
	if err := repo.Enqueue(ctx, other); err != nil {
		t.Fatalf("Enqueue other: %v", err)
	}

	jobs, err := repo.ListByAccount(ctx, "acct-1", "", 10, 0)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(jobs) != 5 {
		t.Fatalf("listed %d jobs, want 5", len(jobs))
	}
	// Newest first.
	for i := 1; i < len(jobs); i++ {
		if jobs[i].CreatedAt.After(jobs[i-1].CreatedAt) {
			t.Errorf("jobs not sorted newest first at index %d", i)
		}
	}

	pending, err := repo.ListByAccount(ctx, "acct-1", domain.JobStatusProcessing, 10, 0)
	if err != nil {
		t.Fatalf("ListByAccount filtered: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("listed %d processing jobs, want 0", len(pending))
	}
}

func TestCountByStatus(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	enqueueJobs(t, repo, 4)

	if _, err := repo.ClaimPendingBatch(ctx, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	pending, err := repo.CountByStatus(ctx, domain.JobStatusPending)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if pending != 3 {
		t.Errorf("pending count = %d, want 3", pending)
	}
}

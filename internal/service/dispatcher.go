package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
)

// WorkExecutor performs the actual rank-check work for one job. The
// dispatcher treats it as opaque: it has a cost, a result, and a budget it is
// expected to respect by returning rather than running unbounded. The
// dispatcher does not forcibly kill a slow executor; the stale-job reaper is
// the backstop for calls that never return.
type WorkExecutor interface {
	Execute(ctx context.Context, job *domain.RankCheckJob, cfg *domain.TrackingConfig, keywords []domain.Keyword, budget time.Duration) (*domain.RankCheckResult, error)
}

// SummaryGenerator produces the post-success daily summary. Best-effort:
// failures are logged and never roll back the primary job result.
type SummaryGenerator interface {
	IsEnabled() bool
	GenerateDailySummary(ctx context.Context, cfg *domain.TrackingConfig, result *domain.RankCheckResult) (string, error)
}

// DispatcherConfig holds the tuning knobs for one dispatcher invocation.
type DispatcherConfig struct {
	// InvocationBudget is the wall-clock ceiling for one Run.
	InvocationBudget time.Duration
	// JobBudget is the fixed per-job execution cap handed to the executor.
	JobBudget time.Duration
	// StaleThreshold is how long a job may sit in processing before the
	// reaper force-fails it.
	StaleThreshold time.Duration
	// BatchLimit caps how many pending jobs one invocation claims.
	BatchLimit int
	// ReapLimit caps how many stale jobs one invocation reaps.
	ReapLimit int
}

// DispatcherService is the per-invocation queue processor. Each Run claims a
// bounded batch of pending jobs, executes them sequentially within the
// invocation budget, and reconciles the credit ledger on completion/failure.
//
// Invocations may overlap in wall-clock time; cross-invocation safety comes
// entirely from the job store's atomic claim. Within one invocation jobs run
// sequentially: the upstream providers rate-limit the executor anyway, so the
// invocation budget is the only throttle needed.
type DispatcherService struct {
	jobRepo      *repository.JobRepository
	ledgerRepo   *repository.LedgerRepository
	trackingRepo *repository.TrackingRepository
	executor     WorkExecutor
	summary      SummaryGenerator
	logger       *logger.Logger
	cfg          DispatcherConfig
}

// NewDispatcherService creates a new dispatcher.
// Parameters:
//   - jobRepo: job store.
//   - ledgerRepo: credit ledger.
//   - trackingRepo: tracking config reads.
//   - executor: work executor performing the rank checks.
//   - summary: post-success summary generator; may be nil.
//   - log: logger instance.
//   - cfg: invocation tuning knobs.
// Returns:
//   - *DispatcherService: initialized dispatcher.
func NewDispatcherService(
	jobRepo *repository.JobRepository,
	ledgerRepo *repository.LedgerRepository,
	trackingRepo *repository.TrackingRepository,
	executor WorkExecutor,
	summary SummaryGenerator,
	log *logger.Logger,
	cfg DispatcherConfig,
) *DispatcherService {
	return &DispatcherService{
		jobRepo:      jobRepo,
		ledgerRepo:   ledgerRepo,
		trackingRepo: trackingRepo,
		executor:     executor,
		summary:      summary,
		logger:       log,
		cfg:          cfg,
	}
}

// RunSummary reports what one invocation did.
type RunSummary struct {
	Pending        int64 `json:"pending"`
	Processed      int   `json:"processed"`
	Failed         int   `json:"failed"`
	StaleCleanedUp int   `json:"staleCleanedUp"`
}

// Run executes one dispatcher invocation.
//
// Order matters: the stale-job reaper runs before new claims so stale jobs
// free up capacity and their refunds are not lost. Claimed jobs are processed
// sequentially; once the invocation deadline passes, the loop stops and the
// untouched remainder stays in processing for a later reaper pass (bounded by
// the stale threshold). One job's failure never aborts the batch; only
// invocation-level setup errors (the store being unreachable) propagate out,
// and the next scheduled invocation retries.
//
// Parameters:
//   - ctx: invocation context.
// Returns:
//   - *RunSummary: counts of processed, failed, and reaped jobs plus the
//     remaining pending depth.
//   - error: non-nil only for invocation-level failures.
func (s *DispatcherService) Run(ctx context.Context) (*RunSummary, error) {
	invocationID := uuid.New().String()
	ctx = logger.SetInvocationID(ctx, invocationID)
	start := time.Now()
	deadline := start.Add(s.cfg.InvocationBudget)

	summary := &RunSummary{}

	reaped, err := s.jobRepo.ReapStale(ctx, s.cfg.StaleThreshold, s.cfg.ReapLimit)
	if err != nil {
		return nil, fmt.Errorf("stale job cleanup failed: %w", err)
	}
	summary.StaleCleanedUp = len(reaped)
	for i := range reaped {
		jobCtx := logger.SetJobID(ctx, reaped[i].ID)
		logger.CtxWarn(jobCtx, "Reaped stale job: started_at=%s", reaped[i].StartedAt.Format(time.RFC3339))
		s.refundJob(jobCtx, &reaped[i], repository.StaleJobError)
	}

	claimed, err := s.jobRepo.ClaimPendingBatch(ctx, s.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	for i := range claimed {
		if !time.Now().Before(deadline) {
			// The rest of the batch stays processing and is caught by the
			// reaper on a later invocation.
			logger.CtxInfo(ctx, "Invocation budget exhausted: processed=%d, remaining=%d",
				summary.Processed+summary.Failed, len(claimed)-i)
			break
		}
		s.processJob(ctx, &claimed[i], deadline, summary)
	}

	if pending, err := s.jobRepo.CountByStatus(ctx, domain.JobStatusPending); err != nil {
		logger.CtxWarn(ctx, "Failed to count pending jobs: %v", err)
	} else {
		summary.Pending = pending
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      summary.Processed,
	}).Info(ctx, "Queue invocation finished: processed=%d, failed=%d, stale=%d, pending=%d",
		summary.Processed, summary.Failed, summary.StaleCleanedUp, summary.Pending)

	return summary, nil
}

// processJob drives one claimed job to a terminal state. All errors are
// contained here; the batch loop continues regardless of the outcome.
func (s *DispatcherService) processJob(ctx context.Context, job *domain.RankCheckJob, deadline time.Time, summary *RunSummary) {
	ctx = logger.SetJobID(ctx, job.ID)
	ctx = logger.SetAccountID(ctx, job.AccountID)

	// Fixed per-job cap, clamped so a job claimed near the deadline is not
	// handed more budget than the invocation has left.
	budget := s.cfg.JobBudget
	if remaining := time.Until(deadline); remaining < budget {
		budget = remaining
	}

	cfg, err := s.trackingRepo.GetConfig(ctx, job.ConfigID)
	if err != nil {
		s.failJob(ctx, job, fmt.Errorf("resolving config %s: %w", job.ConfigID, err), summary)
		return
	}

	keywords, err := s.trackingRepo.ListKeywords(ctx, job.ConfigID, job.KeywordIDs)
	if err != nil {
		s.failJob(ctx, job, fmt.Errorf("resolving keywords: %w", err), summary)
		return
	}

	result, err := s.executor.Execute(ctx, job, cfg, keywords, budget)
	if err != nil {
		s.failJob(ctx, job, err, summary)
		return
	}

	ok, err := s.jobRepo.MarkComplete(ctx, job.ID, &repository.CompletionUpdate{
		ChecksPerformed: result.ChecksPerformed,
		TotalChecks:     result.TotalChecks,
		TotalCost:       result.TotalCost,
		Error:           result.ErrorString(),
	})
	if err != nil {
		// The work succeeded but the write failed; the job stays processing
		// and the reaper settles it later.
		logger.CtxError(ctx, "Failed to record job completion: %v", err)
		return
	}
	if !ok {
		logger.CtxWarn(ctx, "Job no longer processing, completion skipped")
		return
	}
	summary.Processed++

	// Secondary step: best-effort, never rolls back the primary result.
	if s.summary != nil && s.summary.IsEnabled() {
		if _, err := s.summary.GenerateDailySummary(ctx, cfg, result); err != nil {
			logger.CtxWarn(ctx, "Daily summary generation failed: %v", err)
		}
	}
}

// failJob marks the job failed and runs the refund path.
func (s *DispatcherService) failJob(ctx context.Context, job *domain.RankCheckJob, jobErr error, summary *RunSummary) {
	logger.CtxError(ctx, "Job execution failed: %v", jobErr)

	ok, err := s.jobRepo.MarkFailed(ctx, job.ID, jobErr.Error())
	if err != nil {
		logger.CtxError(ctx, "Failed to record job failure: %v", err)
		return
	}
	if !ok {
		logger.CtxWarn(ctx, "Job no longer processing, failure skipped")
		return
	}
	summary.Failed++
	s.refundJob(ctx, job, jobErr.Error())
}

// refundJob issues the idempotent refund for a failed job's debit. Refund
// issuance is best-effort, not transactional with the job-failure write: a
// refund failure is logged for manual reconciliation and never re-fails the
// job or blocks the batch.
func (s *DispatcherService) refundJob(ctx context.Context, job *domain.RankCheckJob, reason string) {
	if job.CreditsUsed <= 0 || job.CreditsIdempotencyKey == "" {
		return
	}

	result, err := s.ledgerRepo.RefundFeature(ctx, job.AccountID, job.CreditsUsed, job.CreditsIdempotencyKey, &repository.DebitParams{
		FeatureType: domain.FeatureRankCheck,
		FeatureMetadata: domain.JSONMap{
			"job_id": job.ID,
			"reason": reason,
		},
		Description: fmt.Sprintf("Refund for failed rank check job %s", job.ID),
	})
	if err != nil {
		var unknownDebit *domain.UnknownDebitError
		if errors.As(err, &unknownDebit) {
			// Invariant violation: the job claims a debit that was never
			// recorded. Needs a human.
			logger.CtxError(ctx, "Refund references unknown debit: key=%s", job.CreditsIdempotencyKey)
			return
		}
		logger.With(logger.Fields{logger.FieldCredits: job.CreditsUsed}).
			Error(ctx, "Failed to refund credits, manual reconciliation needed: %v", err)
		return
	}
	if result.Replayed {
		logger.CtxDebug(ctx, "Refund already issued for key %s", job.CreditsIdempotencyKey)
		return
	}
	logger.With(logger.Fields{logger.FieldCredits: job.CreditsUsed}).
		Info(ctx, "Refunded credits for failed job")
}

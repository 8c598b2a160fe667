package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sammy/rankgrid/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StaleJobError is the synthetic error message written to jobs force-failed
// by the stale-job reaper.
const StaleJobError = "Processing timed out (stale job cleanup)"

// JobRepository handles rank-check job persistence and the job state machine.
// Claims and status transitions are conditional updates gated on the current
// status, so terminal states are sticky and concurrent claimers get exactly
// one winner per row.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a pending job. Credits are not touched here; the producer
// debits before enqueueing and stamps CreditsUsed/CreditsIdempotencyKey on
// the job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist; ID and Status are filled if empty.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.RankCheckJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// ClaimPendingBatch atomically claims up to limit pending jobs, oldest first.
//
// Selected rows transition pending -> processing with StartedAt set in the
// same transaction. Under concurrent callers each row has exactly one winner:
// on PostgreSQL candidates are read FOR UPDATE SKIP LOCKED, and on every
// backend the status flip itself is a conditional update that only counts
// rows still pending, so a row stolen between select and update is simply
// dropped from the claim.
//
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of jobs to claim.
// Returns:
//   - []domain.RankCheckJob: claimed jobs in FIFO order, already marked processing.
//   - error: non-nil if the transaction fails.
func (r *JobRepository) ClaimPendingBatch(ctx context.Context, limit int) ([]domain.RankCheckJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []domain.RankCheckJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if supportsRowLocking(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidates []domain.RankCheckJob
		if err := q.
			Where("status = ?", domain.JobStatusPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&candidates).Error; err != nil {
			return err
		}

		now := time.Now()
		for i := range candidates {
			res := tx.Model(&domain.RankCheckJob{}).
				Where("id = ? AND status = ?", candidates[i].ID, domain.JobStatusPending).
				Updates(map[string]interface{}{
					"status":     domain.JobStatusProcessing,
					"started_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Lost the race for this row to another claimer.
				continue
			}
			candidates[i].Status = domain.JobStatusProcessing
			candidates[i].StartedAt = &now
			claimed = append(claimed, candidates[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompletionUpdate carries the result fields written when a job completes.
// Error may be non-empty even on completion: partial success is still
// complete, only total failure is failed.
type CompletionUpdate struct {
	ChecksPerformed int
	TotalChecks     int
	TotalCost       float64
	Error           string
}

// MarkComplete transitions a job processing -> complete with its results.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to complete.
//   - update: result fields to record.
// Returns:
//   - bool: true if the transition happened; false if the job was not in
//     processing (double completion and terminal states are no-ops).
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkComplete(ctx context.Context, jobID string, update *CompletionUpdate) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RankCheckJob{}).
		Where("id = ? AND status = ?", jobID, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":           domain.JobStatusComplete,
			"completed_at":     time.Now(),
			"checks_performed": update.ChecksPerformed,
			"total_checks":     update.TotalChecks,
			"total_cost":       update.TotalCost,
			"error":            update.Error,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed transitions a job processing -> failed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to fail.
//   - errorMessage: failure reason recorded on the job.
// Returns:
//   - bool: true if the transition happened; false if the job was not in
//     processing.
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, errorMessage string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RankCheckJob{}).
		Where("id = ? AND status = ?", jobID, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusFailed,
			"completed_at": time.Now(),
			"error":        errorMessage,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReapStale force-fails jobs stuck in processing past the threshold.
//
// A crashed invocation leaves its claimed jobs in processing forever; this is
// the only recovery path. Reaped jobs are returned so the caller can run the
// refund path against them.
//
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - threshold: how long a job may sit in processing before it is stale.
//   - limit: maximum number of jobs to reap in one scan.
// Returns:
//   - []domain.RankCheckJob: jobs that were transitioned to failed.
//   - error: non-nil if the transaction fails.
func (r *JobRepository) ReapStale(ctx context.Context, threshold time.Duration, limit int) ([]domain.RankCheckJob, error) {
	cutoff := time.Now().Add(-threshold)

	var reaped []domain.RankCheckJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if supportsRowLocking(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var stale []domain.RankCheckJob
		if err := q.
			Where("status = ? AND started_at < ?", domain.JobStatusProcessing, cutoff).
			Order("started_at ASC").
			Limit(limit).
			Find(&stale).Error; err != nil {
			return err
		}

		now := time.Now()
		for i := range stale {
			res := tx.Model(&domain.RankCheckJob{}).
				Where("id = ? AND status = ?", stale[i].ID, domain.JobStatusProcessing).
				Updates(map[string]interface{}{
					"status":       domain.JobStatusFailed,
					"completed_at": now,
					"error":        StaleJobError,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			stale[i].Status = domain.JobStatusFailed
			stale[i].CompletedAt = &now
			stale[i].Error = StaleJobError
			reaped = append(reaped, stale[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reaped, nil
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.RankCheckJob: job record if found.
//   - error: domain.ErrJobNotFound if no row exists.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.RankCheckJob, error) {
	var job domain.RankCheckJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByAccount retrieves an account's jobs, newest first, optionally
// filtered by status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - accountID: account to list jobs for.
//   - status: status to filter by; empty means all.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.RankCheckJob: matching jobs.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByAccount(ctx context.Context, accountID string, status domain.JobStatus, limit, offset int) ([]domain.RankCheckJob, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var jobs []domain.RankCheckJob
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByStatus counts jobs in the given status across all accounts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: job status to count.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.RankCheckJob{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

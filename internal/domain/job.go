package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a rank-check job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusComplete,
// and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// StringList is a custom type for storing string slices as JSON in the database.
type StringList []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, l)
}

// RankCheckJob is one unit of queued rank-check work.
//
// State machine: pending -> processing -> complete | failed. A job may only
// be claimed from pending; claiming sets StartedAt atomically with the status
// flip. Complete and failed are terminal. Jobs are never deleted; they are
// retained as the audit trail.
//
// CreditsUsed > 0 implies a matching ledger debit exists under
// CreditsIdempotencyKey; if the job ends failed, exactly CreditsUsed credits
// are refunded once, gated on the derived refund key.
type RankCheckJob struct {
	ID                    string     `gorm:"type:text;primaryKey" json:"id"`
	AccountID             string     `gorm:"type:text;not null;index:idx_jobs_account" json:"account_id"`
	ConfigID              string     `gorm:"type:text;not null;index:idx_jobs_config" json:"config_id"`
	KeywordIDs            StringList `gorm:"type:text" json:"keyword_ids"`
	Status                JobStatus  `gorm:"type:text;not null;index:idx_jobs_status;default:pending" json:"status"`
	CreatedAt             time.Time  `gorm:"index:idx_jobs_created" json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	ChecksPerformed       int        `gorm:"not null;default:0" json:"checks_performed"`
	TotalChecks           int        `gorm:"not null;default:0" json:"total_checks"`
	TotalCost             float64    `gorm:"type:decimal(10,4);not null;default:0" json:"total_cost"`
	Error                 string     `gorm:"type:text" json:"error,omitempty"`
	CreditsUsed           int        `gorm:"not null;default:0" json:"credits_used"`
	CreditsIdempotencyKey string     `gorm:"type:text" json:"credits_idempotency_key,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TableName returns the database table name for RankCheckJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (RankCheckJob) TableName() string {
	return "rank_check_jobs"
}

// RankCheckResult is what a work executor reports back for one job. A result
// with a non-empty Errors list and at least one performed check is a partial
// success; the job still completes with the errors recorded.
type RankCheckResult struct {
	ChecksPerformed int      `json:"checks_performed"`
	TotalChecks     int      `json:"total_checks"`
	TotalCost       float64  `json:"total_cost"`
	Errors          []string `json:"errors,omitempty"`
}

// ErrorString flattens the error list for storage on the job row.
func (r *RankCheckResult) ErrorString() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return strings.Join(r.Errors, "; ")
}

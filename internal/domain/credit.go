package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// FeatureType identifies which product feature a ledger entry paid for.
type FeatureType string

const (
	FeatureRankCheck    FeatureType = "rank_check"
	FeatureDailySummary FeatureType = "daily_summary"
	FeatureGrant        FeatureType = "grant"
)

// RefundKeySuffix is appended to a debit's idempotency key to derive the
// matching refund key.
const RefundKeySuffix = ":refund"

// RefundKeyFor derives the refund idempotency key for a debit.
// The pairing is deterministic so a refund can never be applied twice
// for one debit.
// Parameters:
//   - debitKey: idempotency key of the original debit.
// Returns:
//   - string: refund idempotency key.
func RefundKeyFor(debitKey string) string {
	return debitKey + RefundKeySuffix
}

// JSONMap is a custom type for storing opaque metadata as JSON in the database.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the map.
//   - error: non-nil if marshaling fails.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
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
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// CreditBalance is the materialized credit balance for one account.
// It is a cache of the ledger, not a second source of truth: the sum of all
// ledger entry deltas for the account must always equal TotalCredits().
type CreditBalance struct {
	AccountID        string    `gorm:"type:text;primaryKey" json:"account_id"`
	IncludedCredits  int       `gorm:"not null;default:0" json:"included_credits"`
	PurchasedCredits int       `gorm:"not null;default:0" json:"purchased_credits"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for CreditBalance.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CreditBalance) TableName() string {
	return "credit_balances"
}

// TotalCredits returns the spendable credit total for the account.
func (b *CreditBalance) TotalCredits() int {
	return b.IncludedCredits + b.PurchasedCredits
}

// LedgerEntry is one append-only transaction in the credit ledger.
// Delta is negative for debits and positive for refunds/grants. Entries are
// never updated or deleted; corrections are written as new entries.
// PurchasedDelta and IncludedDelta record how the delta split across the two
// credit pools so a refund can replay the exact inverse split.
type LedgerEntry struct {
	ID              string      `gorm:"type:text;primaryKey" json:"id"`
	AccountID       string      `gorm:"type:text;not null;index:idx_ledger_account" json:"account_id"`
	Delta           int         `gorm:"not null" json:"delta"`
	PurchasedDelta  int         `gorm:"not null;default:0" json:"purchased_delta"`
	IncludedDelta   int         `gorm:"not null;default:0" json:"included_delta"`
	IdempotencyKey  string      `gorm:"type:text;not null;uniqueIndex:idx_ledger_idem_key" json:"idempotency_key"`
	FeatureType     FeatureType `gorm:"type:text;not null" json:"feature_type"`
	FeatureMetadata JSONMap     `gorm:"type:text" json:"feature_metadata"`
	Description     string      `gorm:"type:text" json:"description"`
	CreatedAt       time.Time   `json:"created_at"`
}

// TableName returns the database table name for LedgerEntry.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

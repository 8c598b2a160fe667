package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldInvocationID identifies one dispatcher invocation
	FieldInvocationID = "invocation_id"

	// FieldJobID is the rank-check job ID
	FieldJobID = "job_id"

	// FieldAccountID is the account owning the job or balance
	FieldAccountID = "account_id"

	// FieldConfigID is the tracking config ID
	FieldConfigID = "config_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldCredits is a credit amount
	FieldCredits = "credits"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is the data size in bytes
	FieldSize = "size"
)

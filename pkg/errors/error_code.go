package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown   ErrorCode = 1
	ErrCodeCancelled ErrorCode = 2

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSymbol        ErrorCode = 102
	ErrCodeInvalidCategory      ErrorCode = 103
	ErrCodeMissingParameter     ErrorCode = 104

	// Store errors (200-299)
	ErrCodeStoreUnavailable   ErrorCode = 200
	ErrCodeQueryFailed        ErrorCode = 201
	ErrCodeWriteFailed        ErrorCode = 202
	ErrCodeInstrumentNotFound ErrorCode = 203
	ErrCodeAuditWriteFailed   ErrorCode = 204

	// Fetch errors (300-399)
	ErrCodeFetchTransient     ErrorCode = 300
	ErrCodeFetchPermanent     ErrorCode = 301
	ErrCodeFetchParse         ErrorCode = 302
	ErrCodeFetchRateLimited   ErrorCode = 303
	ErrCodeSessionUnavailable ErrorCode = 304

	// Registry errors (400-499)
	ErrCodeRegistryReadFailed  ErrorCode = 400
	ErrCodeRegistryWriteFailed ErrorCode = 401
	ErrCodeDuplicateSymbol     ErrorCode = 402
)

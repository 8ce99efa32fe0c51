package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidQuantity      ErrorCode = 102
	ErrCodeInvalidPrice         ErrorCode = 103
	ErrCodeInvalidSide          ErrorCode = 104
	ErrCodeInvalidIntent        ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound ErrorCode = 200
	ErrCodeQueryFailed  ErrorCode = 201

	// Cache / external fetch errors (300-399)
	ErrCodeExternalFetch ErrorCode = 300
	ErrCodeFetchTimeout  ErrorCode = 301

	// Session errors (400-499)
	ErrCodeSessionNotFound ErrorCode = 400
	ErrCodeSessionExists   ErrorCode = 401

	// Ledger errors (500-599)
	ErrCodeInsufficientFunds    ErrorCode = 500
	ErrCodeInsufficientHoldings ErrorCode = 501
	ErrCodeAccountNotFound      ErrorCode = 502
	ErrCodeAccountExists        ErrorCode = 503

	// Persistence errors (600-699)
	ErrCodePersistenceFailed ErrorCode = 600
	ErrCodeRetryExhausted    ErrorCode = 601
	ErrCodeUnsupportedDriver ErrorCode = 602
)

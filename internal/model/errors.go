package model

import "errors"

// Error taxonomy shared by the core services and the retrieval service
// client. Validation errors are raised before any network call; the client
// wraps service failures into the remaining sentinels so callers can match
// with errors.Is.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("request timed out")
	ErrGenerationFailed   = errors.New("generation failed")
)

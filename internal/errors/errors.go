package errors

import (
	"errors"
)

// Common error types
var (
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrPolicyMissing       = errors.New("policy missing")
	ErrSubscriptionUnknown = errors.New("subscription status unknown")
	ErrPersistence         = errors.New("persistence failure")
	ErrNotFound            = errors.New("not found")
	ErrSessionClosed       = errors.New("verification session closed")
)

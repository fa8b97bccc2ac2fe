package engine

import (
	"errors"
	"fmt"
)

// Sentinel outcomes of the selection path. ErrNoCandidate means every
// local strategy pool was empty; ErrExhausted means the fallback tiers
// (pool, generator) also failed and the caller should retry later.
var (
	ErrNoCandidate = errors.New("no local candidate")
	ErrExhausted   = errors.New("practice supply exhausted, retry later")
)

// ValidationError marks input rejected at the boundary: unknown topic or
// item ids, malformed strategy weights. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErrf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

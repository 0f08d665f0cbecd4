package settlement

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("settlement: invalid room configuration")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("settlement: invalid round entries")
)

// ConfigError reports an unrecognized or out-of-range room setting. It is
// raised before any round is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("settlement: config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ValidationError reports a malformed round. Seat is 0 when the problem is
// with the batch as a whole rather than one entry.
type ValidationError struct {
	Seat   int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Seat == 0 {
		return fmt.Sprintf("settlement: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("settlement: seat %d %s: %s", e.Seat, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func validationErr(seat int, field, format string, args ...any) *ValidationError {
	return &ValidationError{Seat: seat, Field: field, Reason: fmt.Sprintf(format, args...)}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDate reports a compact date that is not DDMMYY.
	ErrMalformedDate = errors.New("malformed compact date")
	// ErrMalformedTime reports a compact time that is not HHMMSS.
	ErrMalformedTime = errors.New("malformed compact time")
	// ErrMalformedCoordinate reports a sexagesimal coordinate that cannot be decoded.
	ErrMalformedCoordinate = errors.New("malformed sexagesimal coordinate")

	ErrUnknownField    = errors.New("unknown raw field")
	ErrMissingField    = errors.New("required field missing")
	ErrNullNotAllowed  = errors.New("null not allowed")
	ErrOutOfDomain     = errors.New("value out of domain")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("record already exists")
	ErrStationInactive = errors.New("station is not operational")
)

// MalformedEncodingError is returned when a single raw value cannot be decoded
// by one of the encoded-value parsers. Kind is one of the ErrMalformed* sentinels.
type MalformedEncodingError struct {
	Kind  error
	Value string
}

func (e *MalformedEncodingError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Value)
}

func (e *MalformedEncodingError) Unwrap() error { return e.Kind }

func malformed(kind error, value string) error {
	return &MalformedEncodingError{Kind: kind, Value: value}
}

// NormalizationError reports a record that cannot be fully typed.
type NormalizationError struct {
	Field string
	Raw   string
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize field %q (raw %q): %v", e.Field, e.Raw, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// ValidationRuleError is reserved for rules that reject a record outright.
// The current quality rules only clear flags and never return it.
type ValidationRuleError struct {
	Rule string
	Err  error
}

func (e *ValidationRuleError) Error() string {
	return fmt.Sprintf("validation rule %s: %v", e.Rule, e.Err)
}

func (e *ValidationRuleError) Unwrap() error { return e.Err }

// BadRequestError reports malformed or missing query parameters.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return "bad request: " + e.Msg }

// BadRequest builds a BadRequestError from a format string.
func BadRequest(format string, args ...any) error {
	return &BadRequestError{Msg: fmt.Sprintf(format, args...)}
}

// ThrottledError reports a request carrying more clauses than allowed.
type ThrottledError struct {
	Param string
	Limit int
	Got   int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled: %s has %d clauses, at most %d allowed", e.Param, e.Got, e.Limit)
}

// NotImplementedError reports an unsupported request kind or clause type.
type NotImplementedError struct {
	What string
}

func (e *NotImplementedError) Error() string { return "not implemented: " + e.What }

// TransientStoreError wraps a store failure that may succeed on retry
// (connection loss, timeout).
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// IsTransient reports whether err, or anything it wraps, is a TransientStoreError.
func IsTransient(err error) bool {
	var t *TransientStoreError
	return errors.As(err, &t)
}

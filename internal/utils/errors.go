package utils

import (
	"errors"
	"fmt"
)

// Error kinds shared by every stage of the refactoring pipeline.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrEncodingInvariant = errors.New("encoding invariant violation")
	ErrPersistence       = errors.New("persistence failure")
	ErrFragmenting       = errors.New("fragmenting failure")
)

// RefactorError represents a structured pipeline error.
type RefactorError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *RefactorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// WrapError creates a contextual error.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &RefactorError{
		Context: context,
		Cause:   cause,
	}
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *RefactorError) Unwrap() error {
	return e.Cause
}

// ConfigError identifies the parameter that made a configuration invalid.
type ConfigError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// Is reports ErrConfiguration so callers can match on the error kind.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// ConfigErrorf builds a ConfigError with a formatted reason.
func ConfigErrorf(param, format string, args ...any) error {
	return &ConfigError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// InvariantErrorf reports a broken encoder or collector contract.
func InvariantErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEncodingInvariant, fmt.Sprintf(format, args...))
}

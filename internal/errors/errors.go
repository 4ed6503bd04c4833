// Package errors provides structured error handling for portsweep operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors with context.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown    ErrorCode = "UNKNOWN"
	CodeValidation ErrorCode = "VALIDATION"

	// Configuration-phase errors. These are the only errors that abort a
	// scan before it starts; everything that happens per probe is data.
	CodeInvalidSpec    ErrorCode = "INVALID_SPEC"
	CodeInvalidRange   ErrorCode = "INVALID_RANGE"
	CodeInvalidAddress ErrorCode = "INVALID_ADDRESS"
	CodeConfiguration  ErrorCode = "CONFIGURATION"

	// Output errors.
	CodeOutputWrite ErrorCode = "OUTPUT_WRITE"
)

// ConfigError represents a configuration-phase error. It is fatal to the
// scan invocation that produced it and is never retried automatically.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// ScanError represents an error in the scan machinery itself, as opposed to
// a per-probe outcome. Used for output sinks and coordinator failures.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case *ConfigError:
		return e.Code == code
	case *ScanError:
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ConfigError:
		return e.Code
	case *ScanError:
		return e.Code
	}
	return CodeUnknown
}

// IsConfigError reports whether the error originated in the configuration
// phase, i.e. before any probe was dispatched.
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}

// Common error creation functions

// ErrInvalidPortSpec creates an error for an unparseable port specification.
func ErrInvalidPortSpec(spec string) *ConfigError {
	return NewConfigFieldError(CodeInvalidSpec, "invalid port specification", "ports", spec)
}

// ErrInvalidAddressRange creates an error for a reversed or incomplete address range.
func ErrInvalidAddressRange(start, end string) *ConfigError {
	return NewConfigFieldError(CodeInvalidRange, "invalid address range",
		"range", fmt.Sprintf("%s-%s", start, end))
}

// ErrInvalidAddressLiteral creates an error for an unparseable IPv4 literal.
func ErrInvalidAddressLiteral(address string) *ConfigError {
	return NewConfigFieldError(CodeInvalidAddress, "invalid IPv4 address", "address", address)
}

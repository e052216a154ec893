// Package errors provides the error taxonomy shared by the signal data path and the
// reader family. It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the SDK.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input, configuration or state
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Argument errors
	ErrArgumentNull     = errors.New("argument is nil")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrSizeTooLarge     = errors.New("size too large")

	// State errors
	ErrInvalidState      = errors.New("invalid state")
	ErrNotFound          = errors.New("not found")
	ErrNotConnected      = errors.New("input port not connected")
	ErrSignalRemoved     = errors.New("signal removed")
	ErrSignalNotAccepted = errors.New("signal not accepted by input port listener")
	ErrPortRemoved       = errors.New("input port removed")
	ErrReaderInvalid     = errors.New("reader invalidated")

	// Data errors
	ErrConversionFailed  = errors.New("sample type conversion failed")
	ErrInvalidDescriptor = errors.New("invalid data descriptor")
	ErrDataCorrupted     = errors.New("data corrupted")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Scheduling errors
	ErrSchedulerStopped  = errors.New("scheduler stopped")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrTimeout           = errors.New("timeout")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is reports whether target is one of the sentinel errors reachable from err.
// It is re-exported so callers only need this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is re-exported from the standard library for the same reason as Is.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New is re-exported from the standard library.
func New(text string) error {
	return errors.New(text)
}

// IsTransient checks if an error is transient and the operation may be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, ErrNotConnected) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "temporary", "busy", "queue full"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrDataCorrupted) ||
		errors.Is(err, ErrSchedulerStopped)
}

// IsInvalid checks if an error is due to invalid input or an invalid object state
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	for _, sentinel := range []error{
		ErrArgumentNull, ErrInvalidParameter, ErrSizeTooLarge,
		ErrInvalidState, ErrNotFound, ErrSignalRemoved, ErrSignalNotAccepted,
		ErrPortRemoved, ErrReaderInvalid, ErrConversionFailed, ErrInvalidDescriptor,
		ErrInvalidConfig, ErrMissingConfig,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	// Classified errors win over sentinel matching
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	return ErrorTransient
}

// newClassified creates a new classified error.
// Use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Invalidf builds an invalid-class error around sentinel with a formatted detail.
// The sentinel stays reachable through errors.Is, as do errors the format wraps
// with %w.
func Invalidf(sentinel error, component, method, format string, args ...any) error {
	detail := fmt.Errorf(format+": %w", append(args, sentinel)...)
	return WrapInvalid(detail, component, method, "validation")
}

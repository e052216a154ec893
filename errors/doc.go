// Package errors provides standardized error handling for the signal data path and readers.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid (bad input or
// an object in the wrong state, do not retry) and Fatal (unrecoverable, stop processing).
//
// The SDK taxonomy maps onto these classes:
//
//   - ErrArgumentNull, ErrInvalidParameter, ErrSizeTooLarge: programming errors at a call site
//   - ErrInvalidState, ErrSignalRemoved, ErrPortRemoved, ErrReaderInvalid: operating on a
//     removed or invalidated object
//   - ErrNotFound, ErrNotConnected: no connection or no such item
//   - ErrConversionFailed, ErrInvalidDescriptor: incompatible sample layouts
//
// A read timeout is not an error. Readers report timeouts through their status value and
// ErrTimeout exists only for scheduler and configuration plumbing.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers attach a classification:
//
//	errors.WrapTransient(err, "Scheduler", "ScheduleWork", "submit")
//	errors.WrapInvalid(err, "InputPort", "Connect", "accept signal")
//	errors.WrapFatal(err, "MetricsRegistry", "RegisterCounter", "register")
//
// Wrapped sentinels stay reachable through errors.Is:
//
//	if errors.Is(err, errors.ErrInvalidState) {
//	    // port or signal was removed
//	}
package errors

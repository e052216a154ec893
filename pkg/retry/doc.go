// Package retry runs an operation with exponential backoff.
//
// Errors are retried only while they classify as transient under the errors
// package. Errors wrapped with WrapInvalid or WrapFatal, or marked with
// NonRetryable, end the loop at once and are returned unchanged.
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return server.Start()
//	})
//
// DefaultConfig makes 3 attempts between 100ms and 5s; Quick makes 10 attempts
// between 50ms and 1s for startup paths.
package retry

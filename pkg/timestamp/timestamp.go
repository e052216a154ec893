// Package timestamp converts between domain ticks and wall-clock time.
//
// Domain signals express time as integer ticks. A tick is scaled to seconds by a
// rational tick resolution (num/den) and counted from an origin. The origin is an
// RFC3339 string, a Unix millisecond string, or empty for the Unix epoch.
//
// Zero Value Semantics:
//   - An empty origin means the Unix epoch
//   - A zero resolution cannot be converted and yields an error
//
// Usage Examples:
//
//	// Tick 1500 of a 1/1000 s domain starting at the epoch
//	t, err := timestamp.FromTicks(1500, 1, 1000, "")
//
//	// Back to ticks
//	tick, err := timestamp.ToTicks(t, 1, 1000, "")
//
//	// Format for display
//	display := timestamp.Format(t)
package timestamp

import (
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ParseOrigin converts an origin string into a time.
// Supports:
//   - "" (Unix epoch)
//   - RFC3339 / RFC3339Nano strings
//   - date-only strings ("2006-01-02")
//   - Unix timestamp strings (milliseconds if > 1e12, otherwise seconds)
func ParseOrigin(origin string) (time.Time, error) {
	if origin == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, origin); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, origin); err == nil {
		return t.UTC(), nil
	}
	if v, err := strconv.ParseInt(origin, 10, 64); err == nil {
		// Values past 1e12 (year 2001 in seconds) are taken as milliseconds
		if v > 1e12 || v < -1e12 {
			return time.UnixMilli(v).UTC(), nil
		}
		return time.Unix(v, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised origin %q", origin)
}

// FromTicks converts a tick count with resolution num/den seconds per tick into
// wall-clock time relative to origin.
func FromTicks(tick, num, den int64, origin string) (time.Time, error) {
	if num == 0 || den == 0 {
		return time.Time{}, fmt.Errorf("invalid tick resolution %d/%d", num, den)
	}
	base, err := ParseOrigin(origin)
	if err != nil {
		return time.Time{}, err
	}
	// tick*num*1e9/den with big arithmetic; tick*num overflows int64 for ns-resolution clocks
	ns := new(big.Int).Mul(big.NewInt(tick), big.NewInt(num))
	ns.Mul(ns, big.NewInt(int64(time.Second)))
	ns.Quo(ns, big.NewInt(den))
	if !ns.IsInt64() {
		return time.Time{}, fmt.Errorf("tick %d out of range for resolution %d/%d", tick, num, den)
	}
	return base.Add(time.Duration(ns.Int64())), nil
}

// ToTicks converts a wall-clock time into ticks of resolution num/den relative to
// origin. The result is truncated toward zero.
func ToTicks(t time.Time, num, den int64, origin string) (int64, error) {
	if num == 0 || den == 0 {
		return 0, fmt.Errorf("invalid tick resolution %d/%d", num, den)
	}
	base, err := ParseOrigin(origin)
	if err != nil {
		return 0, err
	}
	ticks := new(big.Int).Mul(big.NewInt(int64(t.Sub(base))), big.NewInt(den))
	ticks.Quo(ticks, new(big.Int).Mul(big.NewInt(num), big.NewInt(int64(time.Second))))
	if !ticks.IsInt64() {
		return 0, fmt.Errorf("time %s out of range for resolution %d/%d", t, num, den)
	}
	return ticks.Int64(), nil
}

// TicksToDuration converts a tick delta into a duration.
func TicksToDuration(ticks, num, den int64) time.Duration {
	if den == 0 {
		return 0
	}
	return time.Duration(ticks * num * int64(time.Second) / den)
}

// Format converts a time to an RFC3339 string for display.
// Returns empty string for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

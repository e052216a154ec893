package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOrigin     = "2023-01-15T12:30:45Z"
	testOriginTime = time.Date(2023, 1, 15, 12, 30, 45, 0, time.UTC)
)

func TestNow(t *testing.T) {
	before := time.Now().UnixMilli()
	ts := Now()
	after := time.Now().UnixMilli()

	if ts < before || ts > after {
		t.Errorf("Now() = %d, expected between %d and %d", ts, before, after)
	}
}

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{name: "empty is epoch", input: "", expected: time.Unix(0, 0).UTC()},
		{name: "rfc3339", input: testOrigin, expected: testOriginTime},
		{name: "date only", input: "2023-01-15", expected: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "unix seconds", input: "1673785845", expected: testOriginTime},
		{name: "unix milliseconds", input: "1673785845000", expected: testOriginTime},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrigin(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s, expected %s", got, tt.expected)
		})
	}
}

func TestFromTicks(t *testing.T) {
	tests := []struct {
		name     string
		tick     int64
		num, den int64
		origin   string
		expected time.Time
	}{
		{
			name: "milliseconds from epoch",
			tick: 1500, num: 1, den: 1000,
			expected: time.Unix(1, 500_000_000).UTC(),
		},
		{
			name: "microseconds from origin",
			tick: 2_000_000, num: 1, den: 1_000_000, origin: testOrigin,
			expected: testOriginTime.Add(2 * time.Second),
		},
		{
			name: "nanoseconds large tick",
			tick: 1_673_785_845_000_000_000, num: 1, den: 1_000_000_000,
			expected: testOriginTime,
		},
		{
			name: "negative tick",
			tick: -10, num: 1, den: 10, origin: testOrigin,
			expected: testOriginTime.Add(-time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromTicks(tt.tick, tt.num, tt.den, tt.origin)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s, expected %s", got, tt.expected)
		})
	}
}

func TestFromTicksInvalidResolution(t *testing.T) {
	_, err := FromTicks(1, 0, 1000, "")
	assert.Error(t, err)
	_, err = FromTicks(1, 1, 0, "")
	assert.Error(t, err)
}

func TestToTicksRoundTrip(t *testing.T) {
	at := testOriginTime.Add(1234 * time.Millisecond)
	tick, err := ToTicks(at, 1, 1000, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), tick)

	back, err := FromTicks(tick, 1, 1000, testOrigin)
	require.NoError(t, err)
	assert.True(t, at.Equal(back))
}

func TestTicksToDuration(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, TicksToDuration(25, 1, 100))
	assert.Equal(t, time.Duration(0), TicksToDuration(25, 1, 0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(time.Time{}))
	assert.Equal(t, "2023-01-15T12:30:45Z", Format(testOriginTime))
}

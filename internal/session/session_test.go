package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nyc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func at(hour, min int) time.Time {
	return time.Date(2025, 2, 17, hour, min, 0, 0, nyc)
}

func TestIsTradingDay(t *testing.T) {
	now := at(10, 0)

	tests := []struct {
		name  string
		hours string
		want  bool
	}{
		{"open session", "20250217:0930-1600;20250218:0930-1600", true},
		{"closed marker", "20250217:CLOSED;20250218:0930-1600", false},
		{"closed lowercase", "20250217:closed", false},
		{"no token for today", "20250218:0930-1600;20250219:0930-1600", false},
		{"empty string", "", false},
		{"token without colon skipped", "20250217;20250218:0930-1600", false},
		{"extended hours token", "20250217:0400-2000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTradingDay(tt.hours, now))
		})
	}
}

func TestWindowOpenWithinRange(t *testing.T) {
	open, end := Window("20250217:0930-1600", at(12, 0))
	require.True(t, open)
	assert.Equal(t, at(16, 0), end)
}

func TestWindowBothRangeFormsAgree(t *testing.T) {
	now := at(12, 0)
	shortOpen, shortEnd := Window("20250217:0930-1600", now)
	crossOpen, crossEnd := Window("20250217:0930-20250217:1600", now)

	require.True(t, shortOpen)
	require.True(t, crossOpen)
	assert.True(t, shortEnd.Equal(crossEnd), "short form end %v != cross-referenced end %v", shortEnd, crossEnd)
}

func TestWindowClosedOutsideRange(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{"before open", at(8, 0)},
		{"after close", at(17, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, _ := Window("20250217:0930-1600", tt.now)
			assert.False(t, open)
		})
	}
}

func TestWindowBoundariesInclusive(t *testing.T) {
	for _, now := range []time.Time{at(9, 30), at(16, 0)} {
		open, _ := Window("20250217:0930-1600", now)
		assert.True(t, open, "boundary instant %v should be open", now)
	}
}

func TestWindowClosedMarker(t *testing.T) {
	open, end := Window("20250217:CLOSED", at(12, 0))
	assert.False(t, open)
	assert.True(t, end.IsZero())
}

func TestWindowMalformedTokensSkipped(t *testing.T) {
	tests := []struct {
		name  string
		hours string
		open  bool
	}{
		{"missing dash then valid token", "20250217:0930;20250217:0930-1600", true},
		{"bad numeric start", "20250217:09xx-1600", false},
		{"bad numeric end", "20250217:0930-16xx", false},
		{"garbage only", "20250217", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, _ := Window(tt.hours, at(12, 0))
			assert.Equal(t, tt.open, open)
		})
	}
}

func TestWindowNoTokenForToday(t *testing.T) {
	open, _ := Window("20250214:0930-1600;20250218:0930-1600", at(12, 0))
	assert.False(t, open)
}

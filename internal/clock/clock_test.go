package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateToHour(t *testing.T) {
	in := time.Date(2030, 1, 1, 10, 30, 59, 999, time.UTC)
	assert.Equal(t, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), TruncateToHour(in))

	// offsets are normalised to UTC before truncating
	sp := time.FixedZone("BRT", -3*3600)
	in = time.Date(2030, 1, 1, 7, 45, 0, 0, sp)
	assert.Equal(t, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), TruncateToHour(in))
}

func TestIsPast(t *testing.T) {
	now := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, IsPast(now.Add(-time.Nanosecond), now))
	assert.False(t, IsPast(now, now))
	assert.False(t, IsPast(now.Add(time.Second), now))
}

func TestIsWithinHoursOfNow(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

	assert.True(t, IsWithinHoursOfNow(now.Add(2*time.Hour-time.Second), 2, now))
	assert.False(t, IsWithinHoursOfNow(now.Add(2*time.Hour), 2, now))
	assert.False(t, IsWithinHoursOfNow(now.Add(2*time.Hour+time.Second), 2, now))
	assert.True(t, IsWithinHoursOfNow(now.Add(90*time.Minute), 2, now))
}

func TestDayBounds(t *testing.T) {
	in := time.Date(2030, 3, 9, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, time.Date(2030, 3, 9, 0, 0, 0, 0, time.UTC), StartOfDay(in))
	assert.Equal(t, time.Date(2030, 3, 9, 23, 59, 59, 999999999, time.UTC), EndOfDay(in))
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2030-01-01T10:30:00Z":      time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC),
		"2030-01-01T10:30:00-03:00": time.Date(2030, 1, 1, 13, 30, 0, 0, time.UTC),
		"2030-01-01T10:30:00":       time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC),
		"2030-01-01":                time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s: got %s", raw, got)
	}

	for _, raw := range []string{"", "tomorrow", "01/01/2030"} {
		_, err := ParseDate(raw)
		assert.ErrorIs(t, err, ErrInvalidDate, raw)
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, Fixed(at).Now())
}

package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := New(from, from)
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(from, from.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidRange)

	r, err := New(from, from.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.Duration())
}

func TestRange_Previous(t *testing.T) {
	r := Range{
		From: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	prev := r.Previous()
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), prev.From)
	assert.Equal(t, r.From, prev.To)
	assert.Equal(t, r.Duration(), prev.Duration())
}

func TestRange_Contains(t *testing.T) {
	r := Range{
		From: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, r.Contains(r.From))
	assert.False(t, r.Contains(r.To))
	assert.False(t, r.Contains(r.From.Add(-time.Nanosecond)))
}

func TestTrailing(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	r, err := Trailing(PeriodMonth, now)
	require.NoError(t, err)
	assert.Equal(t, now, r.To)
	assert.Equal(t, 30*24*time.Hour, r.Duration())

	_, err = Trailing(Period("2w"), now)
	require.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestMonthsEnding(t *testing.T) {
	months := MonthsEnding(time.Date(2026, 2, 17, 9, 30, 0, 0, time.UTC), 6)
	require.Len(t, months, 6)

	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), months[0].From)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), months[0].To)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), months[5].From)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), months[5].To)

	for i := 1; i < len(months); i++ {
		assert.Equal(t, months[i-1].To, months[i].From)
	}
}

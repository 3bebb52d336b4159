package suncalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Gili Trawangan, Indonesia: near the equator, sun events are stable
// year-round.
const (
	testLat = -8.35
	testLon = 116.04
)

func TestGetSunEventTimesOrdering(t *testing.T) {
	t.Parallel()
	sc := NewSunCalc(testLat, testLon)

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	times, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)

	assert.True(t, times.CivilDawn.Before(times.Sunrise))
	assert.True(t, times.Sunrise.Before(times.Sunset))
	assert.True(t, times.Sunset.Before(times.CivilDusk))
}

func TestGetSunEventTimesCaches(t *testing.T) {
	t.Parallel()
	sc := NewSunCalc(testLat, testLon)

	date := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	first, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)
	second, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDayPeriod(t *testing.T) {
	t.Parallel()
	sc := NewSunCalc(testLat, testLon)

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	times, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)

	assert.Equal(t, PeriodNight, sc.DayPeriod(times.CivilDawn.Add(-2*time.Hour)))
	assert.Equal(t, PeriodDawn, sc.DayPeriod(times.CivilDawn.Add(time.Minute)))
	assert.Equal(t, PeriodDay, sc.DayPeriod(times.Sunrise.Add(3*time.Hour)))
	assert.Equal(t, PeriodDusk, sc.DayPeriod(times.Sunset.Add(time.Minute)))
	assert.Equal(t, PeriodNight, sc.DayPeriod(times.CivilDusk.Add(time.Hour)))
}

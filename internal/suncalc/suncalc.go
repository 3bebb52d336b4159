// Package suncalc computes sun event times for the deployment site and
// classifies timestamps into day periods for sighting photos.
package suncalc

import (
	"fmt"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// Day period labels stored on sighting photos.
const (
	PeriodNight = "night"
	PeriodDawn  = "dawn"
	PeriodDay   = "day"
	PeriodDusk  = "dusk"
)

// SunEventTimes holds the calculated sun event times for one date.
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

type cacheEntry struct {
	times SunEventTimes
	date  time.Time
}

// SunCalc caches per-date sun event times for a fixed observer position.
type SunCalc struct {
	cache    map[string]cacheEntry
	lock     sync.RWMutex
	observer astral.Observer
}

// NewSunCalc creates a calculator for the given coordinates.
func NewSunCalc(latitude, longitude float64) *SunCalc {
	return &SunCalc{
		cache:    make(map[string]cacheEntry),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
	}
}

// GetSunEventTimes returns the sun event times for a date, cached per day.
func (sc *SunCalc) GetSunEventTimes(date time.Time) (SunEventTimes, error) {
	dateKey := date.Format("2006-01-02")

	// Cache key is the calendar day, so all timestamps within a day share
	// one calculation.
	sc.lock.RLock()
	entry, exists := sc.cache[dateKey]
	sc.lock.RUnlock()
	if exists {
		return entry.times, nil
	}

	times, err := sc.calculateSunEventTimes(date)
	if err != nil {
		return SunEventTimes{}, err
	}

	sc.lock.Lock()
	sc.cache[dateKey] = cacheEntry{times: times, date: date}
	sc.lock.Unlock()
	return times, nil
}

func (sc *SunCalc) calculateSunEventTimes(date time.Time) (SunEventTimes, error) {
	civilDawn, err := astral.Dawn(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}
	civilDusk, err := astral.Dusk(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return SunEventTimes{
		CivilDawn: civilDawn,
		Sunrise:   sunrise,
		Sunset:    sunset,
		CivilDusk: civilDusk,
	}, nil
}

// DayPeriod classifies a timestamp relative to the site's sun events. When
// the calculation fails (polar latitudes have dates without a sunrise) the
// period is reported as empty rather than guessed.
func (sc *SunCalc) DayPeriod(t time.Time) string {
	times, err := sc.GetSunEventTimes(t)
	if err != nil {
		return ""
	}
	switch {
	case t.Before(times.CivilDawn) || t.After(times.CivilDusk):
		return PeriodNight
	case t.Before(times.Sunrise):
		return PeriodDawn
	case t.After(times.Sunset):
		return PeriodDusk
	default:
		return PeriodDay
	}
}

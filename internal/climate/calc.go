// Package climate derives plant-relevant metrics from raw sensor readings
// and keeps the daily light integral across restarts.
package climate

import (
	"math"
	"time"
)

// DateLayout is the calendar-date format used for DLI bookkeeping.
const DateLayout = "2006-01-02"

// VPD returns the vapor pressure deficit in kPa using the Tetens
// approximation. Invalid readings yield 0.
func VPD(temp, humidity float64) float64 {
	if temp <= 0 || humidity < 0 || humidity > 100 {
		return 0
	}
	es := 0.61078 * math.Exp(17.27*temp/(temp+237.3))
	ea := es * humidity / 100
	return es - ea
}

// PhotonFlux converts illuminance (lux) to PPFD (μmol·m⁻²·s⁻¹).
func PhotonFlux(lux, factor float64) float64 {
	return lux * factor
}

// DLIState is the day-scoped light integral accumulator.
type DLIState struct {
	Value float64
	Date  string
}

// Reset zeroes the accumulator for the given day.
func (s *DLIState) Reset(day string) {
	s.Value = 0
	s.Date = day
}

// AccumulateDLI adds flux over elapsedSeconds to the accumulator and returns
// the new total. A date change since the last call starts a new day first.
// Negative elapsed time, as after a clock adjustment, adds nothing.
func AccumulateDLI(state *DLIState, flux, elapsedSeconds float64, now time.Time) float64 {
	day := now.Format(DateLayout)
	if state.Date != day {
		state.Reset(day)
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	state.Value += flux * elapsedSeconds / 1_000_000
	return state.Value
}

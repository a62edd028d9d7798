package automation

import (
	"math"
	"testing"
	"time"

	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
)

func lightingHarness(t *testing.T, at time.Time, store *memStore, lux float64) *harness {
	t.Helper()
	h := newHarness(t, at, store, func(c *config.AutomationConfig) {
		c.Switches.LED = true
	})
	h.state.Update(models.Reading{Temperature: 25, Humidity: 60, SoilPct: 60, Lux: lux})
	return h
}

func TestLightingFadesInWhenDark(t *testing.T) {
	h := lightingHarness(t, day(9, 0), nil, 100)

	h.tick()

	assertSent(t, h.gateway.Sent(), "LED_FADE_ON", "PURPLE_FADE_ON")
	snap := h.state.Snapshot()
	if snap.LEDWhite != models.StatusOn || snap.LEDPurple != models.StatusOn {
		t.Errorf("Expected both channels ON, got %s / %s", snap.LEDWhite, snap.LEDPurple)
	}
}

func TestLightingIdleWhenOnTrack(t *testing.T) {
	h := lightingHarness(t, day(9, 0), &memStore{value: 5, date: "2026-05-01"}, 20000)

	h.tick()

	assertSent(t, h.gateway.Sent())
}

func TestLightingOffOutsideWindow(t *testing.T) {
	h := lightingHarness(t, day(21, 0), nil, 0)
	h.state.SetStatus(models.ActuatorLEDWhite, models.StatusOn)
	h.state.SetStatus(models.ActuatorLEDPurple, models.StatusOn)

	h.tick()

	assertSent(t, h.gateway.Sent(), "LED_FADE_OFF", "PURPLE_FADE_OFF")
}

func TestLightingRespectsOverride(t *testing.T) {
	h := lightingHarness(t, day(9, 0), nil, 100)
	h.state.SetOverride(models.ActuatorLEDWhite, day(10, 0))

	h.tick()

	assertSent(t, h.gateway.Sent())

	h.clock.Set(day(10, 0))
	h.tick()
	assertSent(t, h.gateway.Sent(), "LED_FADE_ON", "PURPLE_FADE_ON")
}

func TestLightingWaitsForFadeToFinish(t *testing.T) {
	h := lightingHarness(t, day(19, 55), nil, 100)

	h.tick()
	assertSent(t, h.gateway.Sent(), "LED_FADE_ON", "PURPLE_FADE_ON")

	h.clock.Add(6 * time.Minute)
	h.tick()
	assertSent(t, h.gateway.Sent(), "LED_FADE_ON", "PURPLE_FADE_ON")

	h.clock.Add(5 * time.Minute)
	h.tick()
	assertSent(t, h.gateway.Sent(), "LED_FADE_ON", "PURPLE_FADE_ON", "LED_FADE_OFF", "PURPLE_FADE_OFF")
}

func TestWindowFraction(t *testing.T) {
	tests := []struct {
		at   time.Time
		want float64
	}{
		{day(8, 0), 0},
		{day(14, 0), 0.5},
		{day(20, 0), 1},
		{day(23, 0), 1},
		{day(9, 30), 0.125},
	}

	for _, tc := range tests {
		if got := windowFraction(tc.at, 8, 20); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("windowFraction(%s) = %v, expected %v", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

package climate

import (
	"math"
	"testing"
	"time"
)

func TestVPD(t *testing.T) {
	testCases := []struct {
		name     string
		temp     float64
		humidity float64
		expected float64
		delta    float64
	}{
		{name: "reference point", temp: 25, humidity: 50, expected: 1.58, delta: 0.02},
		{name: "saturated air", temp: 20, humidity: 100, expected: 0, delta: 1e-9},
		{name: "dry air", temp: 30, humidity: 0, expected: 4.24, delta: 0.02},
		{name: "zero temperature", temp: 0, humidity: 50, expected: 0, delta: 0},
		{name: "negative temperature", temp: -5, humidity: 50, expected: 0, delta: 0},
		{name: "humidity above range", temp: 25, humidity: 101, expected: 0, delta: 0},
		{name: "humidity below range", temp: 25, humidity: -1, expected: 0, delta: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := VPD(tc.temp, tc.humidity)
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("Expected a finite value, got %v", got)
			}
			if math.Abs(got-tc.expected) > tc.delta {
				t.Errorf("Expected %v (±%v), got %v", tc.expected, tc.delta, got)
			}
		})
	}
}

func TestPhotonFlux(t *testing.T) {
	if got := PhotonFlux(10000, 0.0185); math.Abs(got-185) > 1e-9 {
		t.Errorf("Expected 185, got %v", got)
	}
}

func TestAccumulateDLIIncreasesWithinDay(t *testing.T) {
	state := &DLIState{}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	prev := 0.0
	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		got := AccumulateDLI(state, 200, 1, now)
		if got <= prev {
			t.Fatalf("Expected DLI to increase, got %v after %v", got, prev)
		}
		prev = got
	}
	if math.Abs(prev-0.002) > 1e-12 {
		t.Errorf("Expected 0.002 mol after 10 s at 200 μmol, got %v", prev)
	}
	if state.Date != "2026-05-01" {
		t.Errorf("Expected date 2026-05-01, got %s", state.Date)
	}
}

func TestAccumulateDLIResetsOnDateChange(t *testing.T) {
	state := &DLIState{Value: 11.5, Date: "2026-05-01"}
	next := time.Date(2026, 5, 2, 0, 0, 1, 0, time.UTC)

	got := AccumulateDLI(state, 100, 10, next)
	if math.Abs(got-0.001) > 1e-12 {
		t.Errorf("Expected only the new increment 0.001, got %v", got)
	}
	if state.Date != "2026-05-02" {
		t.Errorf("Expected date to roll to 2026-05-02, got %s", state.Date)
	}
}

func TestAccumulateDLIClampsNegativeElapsed(t *testing.T) {
	state := &DLIState{Value: 3, Date: "2026-05-01"}
	got := AccumulateDLI(state, 500, -30, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	if got != 3 {
		t.Errorf("Expected accumulator to stay at 3, got %v", got)
	}
}

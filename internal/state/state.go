// Package state holds the current sensor readings and actuator statuses
// shared between ingestion, the control loop and the dashboard.
package state

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/models"
)

// Soil moisture assumed until the first reading arrives. Wet, so an empty
// store never looks like a reason to water.
const DefaultSoilPct = 100

const maxFaults = 50

// Store is the single source of truth for the environment. Every access
// copies in or out under one short-held lock.
type Store struct {
	mu    sync.Mutex
	snap  models.Snapshot
	clock clock.Clock
}

// NewStore returns a store populated with safe defaults.
func NewStore(clk clock.Clock, curtain models.ActuatorStatus) *Store {
	if curtain != models.StatusOpen {
		curtain = models.StatusClosed
	}
	return &Store{
		clock: clk,
		snap: models.Snapshot{
			SoilPct:   DefaultSoilPct,
			Valve:     models.StatusOff,
			Fan:       models.StatusOff,
			LEDWhite:  models.StatusOff,
			LEDPurple: models.StatusOff,
			Curtain:   curtain,
		},
	}
}

// Snapshot returns an independent copy of the current state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap
	if len(s.snap.Faults) > 0 {
		snap.Faults = make([]models.ActuatorFault, len(s.snap.Faults))
		copy(snap.Faults, s.snap.Faults)
	}
	return snap
}

// Update stores a raw sensor reading.
func (s *Store) Update(r models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Temperature = r.Temperature
	s.snap.Humidity = r.Humidity
	s.snap.SoilPct = r.SoilPct
	s.snap.Lux = r.Lux
	s.snap.BoardVPD = r.VPD != nil
	if r.VPD != nil {
		s.snap.VPD = *r.VPD
	}
	s.snap.UpdatedAt = s.clock.Now()
}

// SetDerived stores the metrics computed by the control loop.
func (s *Store) SetDerived(vpd, dli float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.VPD = vpd
	s.snap.DLI = dli
}

// SetDaily stores today's watering counters.
func (s *Store) SetDaily(count int, volumeL float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.WateringCount = count
	s.snap.WaterVolumeL = volumeL
}

// SetStatus records the status of an actuator.
func (s *Store) SetStatus(a models.Actuator, status models.ActuatorStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a {
	case models.ActuatorValve:
		s.snap.Valve = status
	case models.ActuatorFan:
		s.snap.Fan = status
	case models.ActuatorLEDWhite:
		s.snap.LEDWhite = status
	case models.ActuatorLEDPurple:
		s.snap.LEDPurple = status
	case models.ActuatorCurtain:
		s.snap.Curtain = status
	}
}

// ToggleValve flips the tracked valve status and returns the new value.
func (s *Store) ToggleValve() models.ActuatorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Valve == models.StatusOn {
		s.snap.Valve = models.StatusOff
	} else {
		s.snap.Valve = models.StatusOn
	}
	return s.snap.Valve
}

func (s *Store) SetEmergencyStop(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.EmergencyStop = active
}

// SetOverride suppresses automatic lighting on one LED channel until the
// given time. A zero time clears the override.
func (s *Store) SetOverride(a models.Actuator, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a {
	case models.ActuatorLEDWhite:
		s.snap.WhiteOverrideUntil = until
	case models.ActuatorLEDPurple:
		s.snap.PurpleOverrideUntil = until
	}
}

// RecordFault appends an actuator failure, dropping the oldest entries
// beyond a fixed bound.
func (s *Store) RecordFault(f models.ActuatorFault) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.At.IsZero() {
		f.At = s.clock.Now()
	}
	s.snap.Faults = append(s.snap.Faults, f)
	if n := len(s.snap.Faults); n > maxFaults {
		s.snap.Faults = append([]models.ActuatorFault(nil), s.snap.Faults[n-maxFaults:]...)
	}
}

// ClearFaults removes faults recorded at or before t.
func (s *Store) ClearFaults(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.snap.Faults[:0]
	for _, f := range s.snap.Faults {
		if f.At.After(t) {
			kept = append(kept, f)
		}
	}
	s.snap.Faults = kept
}

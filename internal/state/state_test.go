package state

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/models"
)

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore(clock.NewMock(), "")
	snap := s.Snapshot()

	if snap.SoilPct != DefaultSoilPct {
		t.Errorf("Expected default soil %v, got %v", DefaultSoilPct, snap.SoilPct)
	}
	for _, a := range []models.Actuator{models.ActuatorValve, models.ActuatorFan, models.ActuatorLEDWhite, models.ActuatorLEDPurple} {
		if snap.Status(a) != models.StatusOff {
			t.Errorf("Expected %s OFF, got %s", a, snap.Status(a))
		}
	}
	if snap.Curtain != models.StatusClosed {
		t.Errorf("Expected curtain CLOSED, got %s", snap.Curtain)
	}
	if snap.EmergencyStop {
		t.Error("Expected emergency stop to be clear")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := NewStore(clock.NewMock(), models.StatusClosed)
	s.RecordFault(models.ActuatorFault{Actuator: models.ActuatorFan, Command: models.CmdFanOn, Reason: "closed"})

	snap := s.Snapshot()
	snap.Faults[0].Reason = "mutated"
	snap.SoilPct = 1

	again := s.Snapshot()
	if again.Faults[0].Reason != "closed" {
		t.Errorf("Expected stored fault to be untouched, got %q", again.Faults[0].Reason)
	}
	if again.SoilPct != DefaultSoilPct {
		t.Errorf("Expected stored soil to be untouched, got %v", again.SoilPct)
	}
}

func TestUpdateKeepsDerivedVPDUnlessReported(t *testing.T) {
	mock := clock.NewMock()
	s := NewStore(mock, models.StatusClosed)
	s.SetDerived(1.2, 3.4)

	s.Update(models.Reading{Temperature: 24, Humidity: 60, SoilPct: 40, Lux: 800})
	snap := s.Snapshot()
	if snap.VPD != 1.2 {
		t.Errorf("Expected VPD to stay 1.2, got %v", snap.VPD)
	}
	if !snap.UpdatedAt.Equal(mock.Now()) {
		t.Errorf("Expected UpdatedAt %v, got %v", mock.Now(), snap.UpdatedAt)
	}

	vpd := 0.9
	s.Update(models.Reading{Temperature: 24, Humidity: 60, SoilPct: 40, Lux: 800, VPD: &vpd})
	if got := s.Snapshot().VPD; got != 0.9 {
		t.Errorf("Expected reported VPD 0.9, got %v", got)
	}
}

func TestToggleValve(t *testing.T) {
	s := NewStore(clock.NewMock(), models.StatusClosed)
	if got := s.ToggleValve(); got != models.StatusOn {
		t.Errorf("Expected ON after first toggle, got %s", got)
	}
	if got := s.ToggleValve(); got != models.StatusOff {
		t.Errorf("Expected OFF after second toggle, got %s", got)
	}
}

func TestFaultsAreBoundedAndClearable(t *testing.T) {
	mock := clock.NewMock()
	s := NewStore(mock, models.StatusClosed)

	for i := 0; i < maxFaults+5; i++ {
		mock.Add(time.Second)
		s.RecordFault(models.ActuatorFault{Actuator: models.ActuatorFan})
	}
	snap := s.Snapshot()
	if len(snap.Faults) != maxFaults {
		t.Fatalf("Expected %d faults, got %d", maxFaults, len(snap.Faults))
	}

	cutoff := snap.Faults[9].At
	s.ClearFaults(cutoff)
	if got := len(s.Snapshot().Faults); got != maxFaults-10 {
		t.Errorf("Expected %d faults after clearing, got %d", maxFaults-10, got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(clock.New(), models.StatusClosed)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Update(models.Reading{Temperature: float64(i), Humidity: 50, SoilPct: 40})
				s.SetStatus(models.ActuatorFan, models.StatusOn)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
}

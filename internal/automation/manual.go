package automation

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/state"
)

var (
	ErrCommandFailed = errors.New("actuator command failed")
	ErrEmergencyStop = errors.New("emergency stop is active")
)

// CurtainNotifier is told about curtain moves made outside the control loop.
type CurtainNotifier interface {
	NoteCurtain(status models.ActuatorStatus)
}

// Manual applies operator commands from the dashboard or the sensor board's
// buttons. It shares the gateway with the control loop.
type Manual struct {
	state       *state.Store
	gateway     Commander
	curtain     CurtainNotifier
	recorder    Recorder
	clock       clock.Clock
	overrideFor time.Duration
}

func NewManual(st *state.Store, gateway Commander, curtain CurtainNotifier, recorder Recorder, clk clock.Clock, overrideFor time.Duration) *Manual {
	return &Manual{
		state:       st,
		gateway:     gateway,
		curtain:     curtain,
		recorder:    recorder,
		clock:       clk,
		overrideFor: overrideFor,
	}
}

// Execute sends cmd and folds its effect into the shared state. LED commands
// hold off the automatic lighting decision for that channel.
func (m *Manual) Execute(cmd models.Command, source string) error {
	system := cmd.Actuator() == models.ActuatorSystem
	if !system && m.state.Snapshot().EmergencyStop {
		return ErrEmergencyStop
	}

	now := m.clock.Now()
	entry := models.ActuationHistory{
		CycleID:   uuid.NewString(),
		Actuator:  cmd.Actuator(),
		Command:   cmd.Wire(),
		Source:    source,
		StartedAt: now,
		Status:    models.StatusCompleted,
	}

	ok := m.gateway.Send(cmd)
	if cmd.Name == models.CmdEmergencyStop {
		// The software interlock holds even if the board never heard the stop.
		m.state.SetEmergencyStop(true)
	}
	if !ok {
		m.state.RecordFault(models.ActuatorFault{
			Actuator: cmd.Actuator(),
			Command:  cmd.Wire(),
			Reason:   source + " command failed",
			At:       now,
		})
		entry.Status = models.StatusFailed
		m.record(entry)
		return fmt.Errorf("%w: %s", ErrCommandFailed, cmd.Wire())
	}

	switch {
	case cmd.Name == models.CmdValveToggle:
		status := m.state.ToggleValve()
		entry.Notes = "valve now " + string(status)
	case cmd.Name == models.CmdEmergencyResume:
		m.state.SetEmergencyStop(false)
	default:
		status, absolute := cmd.Result()
		if !absolute {
			break
		}
		a := cmd.Actuator()
		m.state.SetStatus(a, status)
		switch a {
		case models.ActuatorLEDWhite, models.ActuatorLEDPurple:
			m.state.SetOverride(a, now.Add(m.overrideFor))
		case models.ActuatorCurtain:
			if m.curtain != nil {
				m.curtain.NoteCurtain(status)
			}
		}
	}

	log.Printf("[automation] Manual %s command %s applied", source, cmd)
	m.record(entry)
	return nil
}

func (m *Manual) record(entry models.ActuationHistory) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(&entry); err != nil {
		log.Printf("[automation] [WARN] Failed to record manual %s: %v", entry.Command, err)
	}
}

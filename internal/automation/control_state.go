package automation

import (
	"time"

	"github.com/prite36/smartfarm-controller/internal/climate"
	"github.com/prite36/smartfarm-controller/internal/models"
)

// ControlState is the memory of the control loop. Only the loop goroutine
// reads or writes it.
type ControlState struct {
	Day string
	DLI climate.DLIState

	WateringCount int
	WaterVolumeL  float64
	LastWatering  time.Time

	// Start of the last fade per LED channel.
	LastFade map[models.Actuator]time.Time

	// There is no curtain position sensor; this is the only record of
	// where the curtain is.
	Curtain models.ActuatorStatus

	LastTick    time.Time
	LastDLISave time.Time
	Interlocked bool
}

func newControlState(curtain models.ActuatorStatus) *ControlState {
	return &ControlState{
		LastFade: make(map[models.Actuator]time.Time),
		Curtain:  curtain,
	}
}

package automation

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
)

// CurtainCommand returns the command that drives the curtain fully to
// target. The sign of the step count follows the motor's open direction.
func CurtainCommand(cfg config.CurtainConfig, target models.ActuatorStatus) models.Command {
	sign := 1
	if strings.EqualFold(cfg.OpenDirection, "CCW") {
		sign = -1
	}
	steps := cfg.Steps()
	if target == models.StatusOpen {
		return models.NewStepCommand(models.CmdCurtainOpen, sign*steps)
	}
	return models.NewStepCommand(models.CmdCurtainClose, -sign*steps)
}

func (l *Loop) curtain(snap *models.Snapshot, now time.Time) {
	cfg := l.cfg.Curtain
	if snap.VPD <= 0 {
		return
	}

	var target models.ActuatorStatus
	switch {
	case snap.VPD < cfg.VPDOpen:
		target = models.StatusOpen
	case snap.VPD > cfg.VPDClose:
		target = models.StatusClosed
	default:
		return
	}
	if target == l.ctrl.Curtain {
		return
	}

	cmd := CurtainCommand(cfg, target)
	entry := models.ActuationHistory{
		CycleID:   uuid.NewString(),
		Actuator:  models.ActuatorCurtain,
		Command:   cmd.Wire(),
		Source:    models.SourceAutomation,
		StartedAt: now,
		VPD:       snap.VPD,
		Status:    models.StatusCompleted,
	}
	if !l.apply(snap, cmd, "curtain move failed") {
		entry.Status = models.StatusFailed
		l.record(entry)
		return
	}
	log.Printf("[automation] Curtain %s -> %s at VPD %.2f kPa", l.ctrl.Curtain, target, snap.VPD)
	l.ctrl.Curtain = target
	l.record(entry)
}

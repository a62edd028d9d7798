package automation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/telemetry"
)

// ShouldWater applies the watering trigger and its vetoes to snap.
// A zero lastWatering means the valve has not run yet.
func ShouldWater(snap models.Snapshot, cfg config.WateringConfig, lastWatering, now time.Time) bool {
	vpdValid := snap.VPD > 0

	trigger := snap.SoilPct < cfg.SoilTriggerPct ||
		(vpdValid && snap.VPD > cfg.VPDHighTrigger && snap.SoilPct < cfg.SoilSafePct)
	if !trigger {
		return false
	}

	switch {
	case snap.SoilPct >= cfg.SoilSafePct:
		return false
	case vpdValid && snap.VPD < cfg.VPDLowSafe:
		return false
	case !lastWatering.IsZero() && now.Sub(lastWatering) < cfg.Cooldown:
		return false
	}
	return true
}

func (l *Loop) watering(ctx context.Context, snap *models.Snapshot, now time.Time) {
	cfg := l.cfg.Watering
	if inHourWindow(now.Hour(), cfg.NightStartHour, cfg.NightEndHour) {
		return
	}
	if !ShouldWater(*snap, cfg, l.ctrl.LastWatering, now) {
		return
	}
	if err := ctx.Err(); err != nil {
		log.Printf("[automation] Skipping watering, shutting down: %v", err)
		return
	}
	l.water(ctx, snap)
}

// water runs one open-hold-close valve cycle.
func (l *Loop) water(ctx context.Context, snap *models.Snapshot) {
	cfg := l.cfg.Watering
	cycleID := uuid.NewString()
	startedAt := l.clock.Now()
	entry := models.ActuationHistory{
		CycleID:   cycleID,
		Actuator:  models.ActuatorValve,
		Command:   models.CmdValveToggle,
		Source:    models.SourceAutomation,
		StartedAt: startedAt,
		SoilPct:   snap.SoilPct,
		VPD:       snap.VPD,
	}
	log.Printf("[automation] Watering cycle %s: soil %.1f%%, VPD %.2f kPa", cycleID, snap.SoilPct, snap.VPD)

	if !l.send(models.ValveToggle(models.StatusOff, models.StatusOn), "valve open failed") {
		entry.Status = models.StatusFailed
		entry.Notes = "valve open command failed"
		l.record(entry)
		telemetry.WateringsTotal.WithLabelValues("open_failed").Inc()
		return
	}
	snap.Valve = models.StatusOn
	l.state.SetStatus(models.ActuatorValve, models.StatusOn)

	if err := l.waiter.Wait(ctx, cfg.Duration); err != nil {
		log.Printf("[automation] [WARN] Watering hold interrupted (%v), closing valve early", err)
	}

	closed := l.send(models.ValveToggle(models.StatusOn, models.StatusOff), "valve OFF command failed")
	// The valve is never reported open once the cycle ends.
	snap.Valve = models.StatusOff
	l.state.SetStatus(models.ActuatorValve, models.StatusOff)

	endedAt := l.clock.Now()
	held := endedAt.Sub(startedAt)
	entry.EndedAt = &endedAt
	entry.DurationSec = held.Seconds()

	if !closed {
		entry.Status = models.StatusFailed
		entry.Notes = "valve close command failed, valve may still be open"
		l.record(entry)
		telemetry.WateringsTotal.WithLabelValues("close_failed").Inc()
		return
	}

	volume := cfg.DripFlowRateLH * float64(cfg.DripCount) * held.Seconds() / 3600
	l.ctrl.LastWatering = endedAt
	l.ctrl.WateringCount++
	l.ctrl.WaterVolumeL += volume
	l.state.SetDaily(l.ctrl.WateringCount, l.ctrl.WaterVolumeL)

	entry.Status = models.StatusCompleted
	entry.VolumeL = volume
	l.record(entry)
	telemetry.WateringsTotal.WithLabelValues("completed").Inc()
	log.Printf("[automation] Watering cycle %s done: %.1fs, %.2f L (today %d, %.2f L)",
		cycleID, held.Seconds(), volume, l.ctrl.WateringCount, l.ctrl.WaterVolumeL)
}

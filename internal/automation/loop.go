// Package automation runs the greenhouse control loop: it refreshes the
// derived metrics every tick and drives the actuators from threshold rules.
package automation

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/climate"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/state"
	"github.com/prite36/smartfarm-controller/internal/telemetry"
)

// Commander sends a command to the actuator board and reports whether it
// went out.
type Commander interface {
	Send(cmd models.Command) bool
}

// Recorder journals actuations.
type Recorder interface {
	Record(entry *models.ActuationHistory) error
}

// Waiter blocks for the watering hold. It returns early with ctx's error
// when ctx is cancelled.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

type clockWaiter struct {
	clock clock.Clock
}

func (w clockWaiter) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(d):
		return nil
	}
}

type Option func(*Loop)

// WithRecorder journals actuations to r.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithWaiter replaces the clock-based watering hold.
func WithWaiter(w Waiter) Option {
	return func(l *Loop) { l.waiter = w }
}

// Loop is the control scheduler.
type Loop struct {
	cfg      config.AutomationConfig
	state    *state.Store
	gateway  Commander
	store    climate.Store
	recorder Recorder
	waiter   Waiter
	clock    clock.Clock

	ctrl *ControlState
	// Curtain moves made outside the loop, applied at the next tick.
	curtainNotes chan models.ActuatorStatus
}

// New creates the loop and restores today's DLI from store.
func New(cfg config.AutomationConfig, st *state.Store, gateway Commander, store climate.Store, clk clock.Clock, opts ...Option) *Loop {
	curtain := models.StatusClosed
	if strings.EqualFold(cfg.Curtain.InitialState, string(models.StatusOpen)) {
		curtain = models.StatusOpen
	}

	l := &Loop{
		cfg:          cfg,
		state:        st,
		gateway:      gateway,
		store:        store,
		waiter:       clockWaiter{clock: clk},
		clock:        clk,
		ctrl:         newControlState(curtain),
		curtainNotes: make(chan models.ActuatorStatus, 4),
	}
	for _, opt := range opts {
		opt(l)
	}

	now := clk.Now()
	today := now.Format(climate.DateLayout)
	l.ctrl.Day = today
	l.ctrl.DLI.Reset(today)
	if value, date := store.Load(); date == today {
		l.ctrl.DLI.Value = value
		log.Printf("[automation] Restored DLI %.3f mol/m²/day for %s", value, date)
	}
	l.ctrl.LastDLISave = now
	st.SetStatus(models.ActuatorCurtain, curtain)
	st.SetDerived(st.Snapshot().VPD, l.ctrl.DLI.Value)
	return l
}

// Run ticks until ctx is cancelled, then persists the DLI accumulator.
func (l *Loop) Run(ctx context.Context) {
	log.Println("[automation] Service started.")
	ticker := l.clock.Ticker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			break
		}
		l.Tick(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.C:
			continue
		}
		break
	}

	l.store.Save(l.ctrl.DLI.Value, l.ctrl.DLI.Date)
	log.Println("[automation] Service stopped.")
}

// RestoreDaily seeds today's watering counters, e.g. from the history
// journal after a restart. Call before Run.
func (l *Loop) RestoreDaily(count int, volumeL float64) {
	l.ctrl.WateringCount = count
	l.ctrl.WaterVolumeL = volumeL
	l.state.SetDaily(count, volumeL)
}

// NoteCurtain tells the loop the curtain was moved by someone else.
func (l *Loop) NoteCurtain(status models.ActuatorStatus) {
	select {
	case l.curtainNotes <- status:
	default:
		log.Printf("[automation] [WARN] Dropping curtain note %s, queue full", status)
	}
}

// Tick runs one evaluation pass against a single snapshot.
func (l *Loop) Tick(ctx context.Context) {
	now := l.clock.Now()
	telemetry.TicksTotal.Inc()
	l.applyNotes()

	snap := l.state.Snapshot()

	l.stage("day-boundary", func() { l.rollDay(now) })
	l.stage("metrics", func() { l.refreshMetrics(&snap, now) })

	if snap.EmergencyStop {
		if !l.ctrl.Interlocked {
			log.Println("[automation] [WARN] Emergency stop asserted, actuation suspended.")
			l.ctrl.Interlocked = true
		}
		return
	}
	if l.ctrl.Interlocked {
		log.Println("[automation] Emergency stop cleared, actuation resumed.")
		l.ctrl.Interlocked = false
	}

	sw := l.cfg.Switches
	if sw.Water {
		l.stage("watering", func() { l.watering(ctx, &snap, now) })
	}
	if sw.LED {
		l.stage("lighting", func() { l.lighting(&snap, now) })
	}
	if sw.Fan {
		l.stage("ventilation", func() { l.ventilation(&snap, now) })
	}
	if sw.Curtain {
		l.stage("curtain", func() { l.curtain(&snap, now) })
	}
}

func (l *Loop) stage(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[automation] [ERROR] Stage %s panicked: %v", name, r)
			telemetry.StagePanicsTotal.WithLabelValues(name).Inc()
		}
	}()
	fn()
}

func (l *Loop) applyNotes() {
	for {
		select {
		case status := <-l.curtainNotes:
			l.ctrl.Curtain = status
		default:
			return
		}
	}
}

func (l *Loop) rollDay(now time.Time) {
	day := now.Format(climate.DateLayout)
	if l.ctrl.Day == day {
		return
	}
	log.Printf("[automation] Day changed %s -> %s: %d waterings, %.2f L, DLI %.2f",
		l.ctrl.Day, day, l.ctrl.WateringCount, l.ctrl.WaterVolumeL, l.ctrl.DLI.Value)

	l.ctrl.Day = day
	l.ctrl.WateringCount = 0
	l.ctrl.WaterVolumeL = 0
	l.state.SetDaily(0, 0)

	l.ctrl.DLI.Reset(day)
	l.store.Save(0, day)
	l.ctrl.LastDLISave = now
}

func (l *Loop) refreshMetrics(snap *models.Snapshot, now time.Time) {
	switch {
	case snap.Temperature > 0 && snap.Humidity >= 0 && snap.Humidity <= 100:
		snap.VPD = climate.VPD(snap.Temperature, snap.Humidity)
	case !snap.BoardVPD:
		// Nothing to derive it from; a stale value would keep driving
		// the fan and curtain.
		snap.VPD = 0
	}

	if snap.Lux > 0 {
		elapsed := 0.0
		if !l.ctrl.LastTick.IsZero() {
			elapsed = now.Sub(l.ctrl.LastTick).Seconds()
		}
		flux := climate.PhotonFlux(snap.Lux, l.cfg.Lighting.LuxToPPFD)
		climate.AccumulateDLI(&l.ctrl.DLI, flux, elapsed, now)
	}
	l.ctrl.LastTick = now
	snap.DLI = l.ctrl.DLI.Value

	l.state.SetDerived(snap.VPD, snap.DLI)
	telemetry.VPD.Set(snap.VPD)
	telemetry.DLI.Set(snap.DLI)

	if now.Sub(l.ctrl.LastDLISave) >= l.cfg.DLISaveInterval {
		l.store.Save(l.ctrl.DLI.Value, l.ctrl.DLI.Date)
		l.ctrl.LastDLISave = now
	}
}

// send issues cmd and, on failure, records a fault for the operator.
func (l *Loop) send(cmd models.Command, reason string) bool {
	if l.gateway.Send(cmd) {
		return true
	}
	log.Printf("[automation] [ERROR] %s: %s command %s failed", reason, cmd.Actuator(), cmd)
	l.state.RecordFault(models.ActuatorFault{
		Actuator: cmd.Actuator(),
		Command:  cmd.Wire(),
		Reason:   reason,
		At:       l.clock.Now(),
	})
	return false
}

// apply sends cmd and, when it goes out, records the resulting status both
// in the shared state and in the tick's working snapshot.
func (l *Loop) apply(snap *models.Snapshot, cmd models.Command, reason string) bool {
	if !l.send(cmd, reason) {
		return false
	}
	if status, ok := cmd.Result(); ok {
		setStatus(snap, cmd.Actuator(), status)
		l.state.SetStatus(cmd.Actuator(), status)
	}
	return true
}

func (l *Loop) record(entry models.ActuationHistory) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.Record(&entry); err != nil {
		log.Printf("[automation] [WARN] Failed to record %s history: %v", entry.Actuator, err)
	}
}

func setStatus(snap *models.Snapshot, a models.Actuator, status models.ActuatorStatus) {
	switch a {
	case models.ActuatorValve:
		snap.Valve = status
	case models.ActuatorFan:
		snap.Fan = status
	case models.ActuatorLEDWhite:
		snap.LEDWhite = status
	case models.ActuatorLEDPurple:
		snap.LEDPurple = status
	case models.ActuatorCurtain:
		snap.Curtain = status
	}
}

// inHourWindow reports whether hour lies in [start, end), wrapping past
// midnight when start > end.
func inHourWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

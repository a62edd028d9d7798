package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron"
	"github.com/prite36/smartfarm-controller/internal/analyzer"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/state"
	"github.com/prite36/smartfarm-controller/internal/telemetry"
)

// AlertSink receives the alerts of every analysis run.
type AlertSink interface {
	Notify(alerts []models.Alert) int
}

// Summarizer delivers the end-of-day report.
type Summarizer interface {
	Summarize(snap models.Snapshot, targetDLI float64) bool
}

// Scheduler runs the periodic analysis and the daily summary.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       *config.Config
	state     *state.Store
	analyzer  *analyzer.Analyzer
	window    *analyzer.Window
	clock     clock.Clock
	summary   Summarizer
	sinks     []AlertSink

	mu     sync.RWMutex
	latest []models.Alert
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg *config.Config, st *state.Store, clk clock.Clock, summary Summarizer, sinks ...AlertSink) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", cfg.Schedule.Timezone, err)
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		cfg:       cfg,
		state:     st,
		analyzer:  analyzer.New(analyzer.ConfigFrom(cfg)),
		window:    analyzer.NewWindow(analyzer.MaxDriftSamples),
		clock:     clk,
		summary:   summary,
		sinks:     sinks,
	}, nil
}

// Start begins the scheduler's job execution.
func (s *Scheduler) Start() error {
	log.Printf("[scheduler] Scheduling analysis every %s", s.cfg.Alert.Interval)
	if _, err := s.scheduler.Every(s.cfg.Alert.Interval).Do(s.RunAnalysis); err != nil {
		return fmt.Errorf("failed to schedule analysis: %w", err)
	}

	log.Printf("[scheduler] Scheduling daily summary at %s", s.cfg.Schedule.SummaryTime)
	if _, err := s.scheduler.Every(1).Day().At(s.cfg.Schedule.SummaryTime).Do(s.RunSummary); err != nil {
		return fmt.Errorf("failed to schedule summary at %s: %w", s.cfg.Schedule.SummaryTime, err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	log.Println("[scheduler] Stopping scheduler...")
	s.scheduler.Stop()
}

// RunAnalysis evaluates the current snapshot and hands the alerts to every
// sink. It can also be called directly for debugging purposes.
func (s *Scheduler) RunAnalysis() []models.Alert {
	snap := s.state.Snapshot()
	alerts := s.analyzer.Analyze(snap, s.clock.Now())

	if snap.HasSensorData() {
		s.window.Push(snap)
		for _, a := range s.window.Drift() {
			a.ID = len(alerts) + 1
			alerts = append(alerts, a)
		}
	}

	// Reported faults are dropped so each failure alerts once.
	var reported time.Time
	for _, f := range snap.Faults {
		if f.At.After(reported) {
			reported = f.At
		}
	}
	if !reported.IsZero() {
		s.state.ClearFaults(reported)
	}

	for _, a := range alerts {
		telemetry.AlertsTotal.WithLabelValues(a.CaseCode).Inc()
	}

	s.mu.Lock()
	s.latest = alerts
	s.mu.Unlock()

	if len(alerts) > 0 {
		log.Printf("[scheduler] Analysis produced %d alerts", len(alerts))
	}
	for _, sink := range s.sinks {
		sink.Notify(alerts)
	}
	return alerts
}

// Latest returns the alerts of the most recent analysis.
func (s *Scheduler) Latest() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Alert(nil), s.latest...)
}

// RunSummary posts the daily report.
func (s *Scheduler) RunSummary() {
	if s.summary == nil {
		return
	}
	snap := s.state.Snapshot()
	if !s.summary.Summarize(snap, s.cfg.Automation.Lighting.TargetDLIMin) {
		log.Println("[scheduler] [WARN] Daily summary was not delivered")
		return
	}
	log.Printf("[scheduler] Daily summary sent: %d waterings, %.2f L, DLI %.2f",
		snap.WateringCount, snap.WaterVolumeL, snap.DLI)
}

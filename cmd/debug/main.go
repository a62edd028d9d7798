package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/prite36/smartfarm-controller/internal/automation"
	"github.com/prite36/smartfarm-controller/internal/climate"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/scheduler"
	"github.com/prite36/smartfarm-controller/internal/serial"
	"github.com/prite36/smartfarm-controller/internal/state"
)

// dryRun prints commands instead of writing them to the actuator board.
type dryRun struct{}

func (dryRun) Send(cmd models.Command) bool {
	fmt.Printf("  -> %s\n", cmd.Wire())
	return true
}

// Usage: debug 'DATA,<temp>,<hum>,<soil_raw>,<soil_pct>,<lux>,<vpd>'
func main() {
	log.Println("Starting application...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	frame := "DATA,30.0,45.0,600,25.0,300,0"
	if len(os.Args) > 1 {
		frame = os.Args[1]
	}

	clk := clock.New()
	st := state.NewStore(clk, models.ActuatorStatus(strings.ToUpper(cfg.Automation.Curtain.InitialState)))
	serial.NewIngestor(st, nil, nil).HandleLine(frame)
	if !st.Snapshot().HasSensorData() {
		log.Fatalf("Frame %q was not accepted", frame)
	}

	// Keep the persisted DLI of the running controller untouched.
	store := climate.NewFileStore(filepath.Join(os.TempDir(), "smartfarm-debug-dli.json"), clk)
	loop := automation.New(cfg.Automation, st, dryRun{}, store, clk)

	log.Println("Executing one control tick directly...")
	loop.Tick(context.Background())

	snap := st.Snapshot()
	fmt.Printf("temp=%.1f hum=%.1f soil=%.1f lux=%.0f vpd=%.2f dli=%.3f\n",
		snap.Temperature, snap.Humidity, snap.SoilPct, snap.Lux, snap.VPD, snap.DLI)

	sched, err := scheduler.NewScheduler(cfg, st, clk, nil)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	log.Println("Executing analysis directly...")
	alerts := sched.RunAnalysis()
	for _, a := range alerts {
		fmt.Printf("[%s] %s: %s\n", a.Severity, a.CaseCode, a.Message)
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts.")
	}

	log.Println("Debug run finished.")
}

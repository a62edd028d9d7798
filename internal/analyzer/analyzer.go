// Package analyzer turns an environment snapshot into operator alerts.
package analyzer

import (
	"fmt"
	"time"

	"github.com/prite36/smartfarm-controller/internal/climate"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
)

// Fixed alert thresholds. Ventilation reacts from 32 °C; alerts start later.
const (
	TempCriticalLow  = 5.0
	TempLow          = 10.0
	TempHigh         = 35.0
	TempCriticalHigh = 40.0
	HumLow           = 20.0
	HumHigh          = 95.0
	SoilCriticalLow  = 10.0
	VPDLow           = 0.3
	VPDHigh          = 2.5

	// Share of the prorated DLI below which the day is behind.
	DLIBehindRatio = 0.7
	// Share of the daily target a day must reach to count as on track.
	DLIOnTrackRatio = 0.8
)

type Config struct {
	SoilTriggerPct  float64
	TargetDLIMin    float64
	LuxToPPFD       float64
	ActiveStartHour int
	ActiveEndHour   int
}

// ConfigFrom picks the analyzer settings out of the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		SoilTriggerPct:  cfg.Automation.Watering.SoilTriggerPct,
		TargetDLIMin:    cfg.Automation.Lighting.TargetDLIMin,
		LuxToPPFD:       cfg.Automation.Lighting.LuxToPPFD,
		ActiveStartHour: cfg.Alert.ActiveStartHour,
		ActiveEndHour:   cfg.Alert.ActiveEndHour,
	}
}

type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// pass collects the alerts of one evaluation and numbers them from 1.
type pass struct {
	alerts []models.Alert
}

func (p *pass) add(a models.Alert) {
	a.ID = len(p.alerts) + 1
	p.alerts = append(p.alerts, a)
}

// Analyze evaluates snap at time now. It has no side effects. Without
// sensor data only actuator faults and the emergency stop are reported.
func (a *Analyzer) Analyze(snap models.Snapshot, now time.Time) []models.Alert {
	p := &pass{}
	if snap.HasSensorData() {
		a.temperature(p, snap.Temperature)
		a.humidity(p, snap.Humidity)
		a.soil(p, snap.SoilPct)
		a.vpd(p, snap)
		a.dli(p, snap, now)
	}
	a.faults(p, snap.Faults)

	if snap.EmergencyStop {
		p.add(models.Alert{
			CaseCode: models.CaseEmergencyStop,
			Severity: models.SeverityError,
			Title:    "Emergency stop active",
			Message:  "The system is in emergency stop. All actuators are halted.",
			Actions: []string{
				"Release the emergency stop from the dashboard",
				"Inspect the greenhouse",
				"Resume once the cause is fixed",
			},
		})
	}
	return p.alerts
}

func (a *Analyzer) temperature(p *pass, temp float64) {
	if temp == 0 {
		return
	}
	switch {
	case temp < TempCriticalLow:
		p.add(models.Alert{
			CaseCode: models.CaseTempCriticalLow,
			Severity: models.SeverityError,
			Title:    "Frost risk",
			Message:  fmt.Sprintf("Temperature is %.1f°C. Plants may suffer cold damage.", temp),
			Actions:  []string{"Turn on grow lights for heat", "Close the curtain", "Stop the fan", "Check greenhouse heating"},
		})
	case temp < TempLow:
		p.add(models.Alert{
			CaseCode: models.CaseTempLow,
			Severity: models.SeverityWarning,
			Title:    "Low temperature",
			Message:  fmt.Sprintf("Temperature is %.1f°C, too low for healthy growth.", temp),
			Actions:  []string{"Turn on grow lights", "Close the curtain", "Check insulation"},
		})
	case temp >= TempCriticalHigh:
		p.add(models.Alert{
			CaseCode: models.CaseTempCriticalHigh,
			Severity: models.SeverityError,
			Title:    "Overheating",
			Message:  fmt.Sprintf("Temperature is %.1f°C. Plants may be damaged.", temp),
			Actions:  []string{"Run the fan now", "Open the curtain", "Turn off grow lights", "Check the ventilation", "Check the temperature sensor"},
		})
	case temp > TempHigh:
		p.add(models.Alert{
			CaseCode: models.CaseTempHigh,
			Severity: models.SeverityWarning,
			Title:    "High temperature",
			Message:  fmt.Sprintf("Temperature is %.1f°C. Plants may be stressed.", temp),
			Actions:  []string{"Run the fan", "Open the curtain", "Dim grow lights"},
		})
	}
}

func (a *Analyzer) humidity(p *pass, hum float64) {
	switch {
	case hum <= 0:
	case hum < HumLow:
		p.add(models.Alert{
			CaseCode: models.CaseHumLow,
			Severity: models.SeverityWarning,
			Title:    "Low humidity",
			Message:  fmt.Sprintf("Humidity is %.1f%%. Plants may dry out.", hum),
			Actions:  []string{"Consider watering", "Stop the fan", "Close the curtain", "Check the humidifier"},
		})
	case hum > HumHigh:
		p.add(models.Alert{
			CaseCode: models.CaseHumHigh,
			Severity: models.SeverityWarning,
			Title:    "High humidity",
			Message:  fmt.Sprintf("Humidity is %.1f%%. Mould risk.", hum),
			Actions:  []string{"Run the fan", "Open the curtain", "Turn on grow lights", "Pause watering"},
		})
	}
}

func (a *Analyzer) soil(p *pass, soil float64) {
	switch {
	case soil <= 0:
	case soil < SoilCriticalLow:
		p.add(models.Alert{
			CaseCode: models.CaseSoilCriticalLow,
			Severity: models.SeverityError,
			Title:    "Soil critically dry",
			Message:  fmt.Sprintf("Soil moisture is %.1f%%. Plants may wilt.", soil),
			Actions:  []string{"Water now", "Check the soil sensor", "Check the drip spikes"},
		})
	case soil < a.cfg.SoilTriggerPct:
		p.add(models.Alert{
			CaseCode: models.CaseSoilLow,
			Severity: models.SeverityWarning,
			Title:    "Soil dry",
			Message:  fmt.Sprintf("Soil moisture is %.1f%%. Watering may be needed.", soil),
			Actions:  []string{"Consider watering", "Check the soil"},
		})
	}
}

func (a *Analyzer) vpd(p *pass, snap models.Snapshot) {
	if snap.VPD <= 0 || snap.Temperature <= 0 || snap.Humidity <= 0 {
		return
	}
	switch {
	case snap.VPD < VPDLow:
		p.add(models.Alert{
			CaseCode: models.CaseVPDLow,
			Severity: models.SeverityWarning,
			Title:    "VPD too low",
			Message:  fmt.Sprintf("VPD is %.2f kPa. The air is saturated, mould risk.", snap.VPD),
			Actions:  []string{"Run the fan", "Open the curtain", "Turn on grow lights", "Pause watering"},
		})
	case snap.VPD > VPDHigh:
		p.add(models.Alert{
			CaseCode: models.CaseVPDHigh,
			Severity: models.SeverityWarning,
			Title:    "VPD too high",
			Message:  fmt.Sprintf("VPD is %.2f kPa. The air is too dry.", snap.VPD),
			Actions:  []string{"Stop the fan", "Close the curtain", "Consider watering", "Check the humidifier"},
		})
	}
}

// ProjectDLI estimates where the day's DLI will end up by holding the
// current photon flux for the rest of the active window.
func (a *Analyzer) ProjectDLI(snap models.Snapshot, now time.Time) models.DLIDetail {
	target := a.cfg.TargetDLIMin
	start, end := float64(a.cfg.ActiveStartHour), float64(a.cfg.ActiveEndHour)
	hours := float64(now.Hour()) + float64(now.Minute())/60 + float64(now.Second())/3600

	d := models.DLIDetail{Current: snap.DLI, Target: target}
	switch {
	case hours < start:
		d.ExpectedTotal = snap.DLI
		d.RemainingHours = end - start
	case hours < end:
		d.ExpectedNow = target * (hours - start) / (end - start)
		d.RemainingHours = end - hours
		flux := climate.PhotonFlux(snap.Lux, a.cfg.LuxToPPFD)
		d.ExpectedTotal = snap.DLI + flux*d.RemainingHours*3600/1e6
	default:
		d.ExpectedNow = target
		d.ExpectedTotal = snap.DLI
	}

	if target > 0 {
		d.TargetRatio = d.ExpectedTotal / target * 100
	}
	d.Deficit = max(target-d.ExpectedTotal, 0)
	d.OnTrack = d.ExpectedTotal >= target*DLIOnTrackRatio
	return d
}

func (a *Analyzer) dli(p *pass, snap models.Snapshot, now time.Time) {
	if now.Hour() < a.cfg.ActiveStartHour {
		return
	}
	d := a.ProjectDLI(snap, now)

	if now.Hour() >= a.cfg.ActiveEndHour {
		if snap.DLI >= d.Target*DLIOnTrackRatio {
			return
		}
		p.add(models.Alert{
			CaseCode: models.CaseDLILow,
			Severity: models.SeverityWarning,
			Title:    "Daily light target missed",
			Message: fmt.Sprintf("DLI at end of day: %.2f mol/m²/day (target %.1f, %.1f%%)",
				snap.DLI, d.Target, d.TargetRatio),
			Actions: []string{"Extend grow light hours tomorrow", "Adjust the curtain", "Check the light sensor"},
			DLI:     &d,
		})
		return
	}

	if snap.DLI >= d.ExpectedNow*DLIBehindRatio || d.OnTrack {
		return
	}
	p.add(models.Alert{
		CaseCode: models.CaseDLILow,
		Severity: models.SeverityWarning,
		Title:    "Insufficient light",
		Message: fmt.Sprintf("DLI now %.2f, projected %.2f mol/m²/day (target %.1f, %.1f%%), short by %.2f",
			snap.DLI, d.ExpectedTotal, d.Target, d.TargetRatio, d.Deficit),
		Actions: []string{
			"Turn on grow lights",
			"Open the curtain for daylight",
			fmt.Sprintf("Supplement light for the remaining %.1f hours", d.RemainingHours),
		},
		DLI: &d,
	})
}

// faults reports the most recent failure of each actuator.
func (a *Analyzer) faults(p *pass, faults []models.ActuatorFault) {
	latest := make(map[models.Actuator]int)
	var order []models.Actuator
	for i, f := range faults {
		if _, seen := latest[f.Actuator]; !seen {
			order = append(order, f.Actuator)
		}
		latest[f.Actuator] = i
	}

	for _, act := range order {
		f := faults[latest[act]]
		p.add(models.Alert{
			CaseCode: models.CaseActuatorFailure,
			Severity: models.SeverityError,
			Title:    fmt.Sprintf("%s command failed", act),
			Message:  fmt.Sprintf("%s: %s command %s failed at %s", f.Reason, act, f.Command, f.At.Format("15:04:05")),
			Actions:  []string{"Check the actuator board connection", "Check the " + string(act) + " wiring", "Verify the actuator state by hand"},
			Fault:    &f,
		})
	}
}

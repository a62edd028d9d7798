package analyzer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/prite36/smartfarm-controller/internal/models"
)

const (
	MinDriftSamples = 10
	MaxDriftSamples = 100
	// Relative spread below which a signal counts as frozen.
	DriftThreshold = 0.01
)

// AnalyzeDrift flags a sensor whose recent values barely move. It looks at
// the last MaxDriftSamples values and needs at least MinDriftSamples.
func AnalyzeDrift(field string, values []float64) *models.Alert {
	if len(values) > MaxDriftSamples {
		values = values[len(values)-MaxDriftSamples:]
	}
	if len(values) < MinDriftSamples {
		return nil
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean <= 0 {
		return nil
	}
	if (slices.Max(values)-slices.Min(values))/mean >= DriftThreshold {
		return nil
	}

	return &models.Alert{
		ID:       1,
		CaseCode: models.CaseSensorAnomaly + "_" + strings.ToUpper(field),
		Severity: models.SeverityWarning,
		Title:    fmt.Sprintf("%s sensor suspect", field),
		Message:  fmt.Sprintf("%s has barely changed over the last %d samples. The sensor may be faulty or disconnected.", field, len(values)),
		Actions:  []string{"Check the sensor connection", "Clean the sensor", "Consider replacing the sensor"},
	}
}

// Window keeps the recent raw values of each sensor field.
type Window struct {
	size   int
	values map[string][]float64
}

func NewWindow(size int) *Window {
	return &Window{size: size, values: make(map[string][]float64)}
}

// Push appends the raw readings of snap.
func (w *Window) Push(snap models.Snapshot) {
	w.add("temperature", snap.Temperature)
	w.add("humidity", snap.Humidity)
	w.add("soil", snap.SoilPct)
	w.add("lux", snap.Lux)
}

func (w *Window) add(field string, v float64) {
	vals := append(w.values[field], v)
	if len(vals) > w.size {
		vals = vals[len(vals)-w.size:]
	}
	w.values[field] = vals
}

// Drift runs AnalyzeDrift over every field, numbering alerts from 1.
func (w *Window) Drift() []models.Alert {
	var alerts []models.Alert
	for _, field := range []string{"temperature", "humidity", "soil", "lux"} {
		if a := AnalyzeDrift(field, w.values[field]); a != nil {
			a.ID = len(alerts) + 1
			alerts = append(alerts, *a)
		}
	}
	return alerts
}

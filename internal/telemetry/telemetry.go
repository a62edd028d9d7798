// Package telemetry exposes controller metrics to Prometheus.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartfarm",
		Name:      "actuator_commands_total",
		Help:      "Actuator commands by token and result.",
	}, []string{"command", "result"})

	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartfarm",
		Name:      "automation_ticks_total",
		Help:      "Control loop ticks executed.",
	})

	StagePanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartfarm",
		Name:      "automation_stage_panics_total",
		Help:      "Control loop stages that panicked and were recovered.",
	}, []string{"stage"})

	WateringsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartfarm",
		Name:      "watering_cycles_total",
		Help:      "Watering cycles by outcome.",
	}, []string{"result"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartfarm",
		Name:      "alerts_total",
		Help:      "Alerts produced by case code.",
	}, []string{"case"})

	VPD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartfarm",
		Name:      "vpd_kpa",
		Help:      "Current vapor pressure deficit.",
	})

	DLI = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartfarm",
		Name:      "dli_mol",
		Help:      "Daily light integral accumulated today.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

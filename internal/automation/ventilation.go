package automation

import (
	"log"
	"time"

	"github.com/prite36/smartfarm-controller/internal/models"
)

func (l *Loop) ventilation(snap *models.Snapshot, _ time.Time) {
	cfg := l.cfg.Ventilation

	// Lights are switched off by the lighting stage under the same condition.
	if snap.Temperature >= cfg.TempCriticalHigh {
		if snap.Fan != models.StatusOn {
			log.Printf("[automation] [WARN] Overheat %.1f°C: forcing fan on", snap.Temperature)
			l.apply(snap, models.NewCommand(models.CmdFanOn), "overheat fan on failed")
		}
		return
	}

	want := snap.Fan
	vpdValid := snap.VPD > 0
	switch {
	case vpdValid && snap.VPD > cfg.VPDFanOn:
		want = models.StatusOn
	case vpdValid && snap.VPD < cfg.VPDFanOff:
		want = models.StatusOff
	case snap.Temperature >= cfg.TempHighLimit || snap.Humidity >= cfg.HumHighLimit:
		want = models.StatusOn
	}
	if want == snap.Fan {
		return
	}

	token := models.CmdFanOff
	if want == models.StatusOn {
		token = models.CmdFanOn
	}
	l.apply(snap, models.NewCommand(token), "fan switch failed")
}

package automation

import (
	"log"
	"time"

	"github.com/prite36/smartfarm-controller/internal/models"
)

type fadeTokens struct {
	on, off string
}

var ledFades = map[models.Actuator]fadeTokens{
	models.ActuatorLEDWhite:  {models.CmdLEDFadeOn, models.CmdLEDFadeOff},
	models.ActuatorLEDPurple: {models.CmdPurpleFadeOn, models.CmdPurpleFadeOff},
}

// windowFraction returns how much of the [on, off) light window has passed
// at now, in [0, 1].
func windowFraction(now time.Time, on, off int) float64 {
	total := off - on
	if total <= 0 {
		total += 24
	}
	elapsed := float64(now.Hour()-on) + float64(now.Minute())/60 + float64(now.Second())/3600
	if elapsed < 0 {
		elapsed += 24
	}
	return min(max(elapsed/float64(total), 0), 1)
}

func (l *Loop) lighting(snap *models.Snapshot, now time.Time) {
	cfg := l.cfg.Lighting

	// Overheat cuts both channels at once, ignoring overrides and fades.
	if snap.Temperature >= l.cfg.Ventilation.TempCriticalHigh {
		if snap.LEDWhite != models.StatusOff || snap.LEDPurple != models.StatusOff {
			log.Printf("[automation] [WARN] Overheat %.1f°C: grow lights off", snap.Temperature)
		}
		if snap.LEDWhite != models.StatusOff {
			l.apply(snap, models.NewCommand(models.CmdLEDOff), "overheat light off failed")
		}
		if snap.LEDPurple != models.StatusOff {
			l.apply(snap, models.NewCommand(models.CmdPurpleOff), "overheat light off failed")
		}
		return
	}

	var wantWhite, wantPurple bool
	if inHourWindow(now.Hour(), cfg.OnHour, cfg.OffHour) {
		prorated := cfg.TargetDLIMin * windowFraction(now, cfg.OnHour, cfg.OffHour)
		wantWhite = snap.Lux < cfg.MinLux || snap.DLI < prorated*cfg.WhiteDeficitRatio
		wantPurple = cfg.PurpleBoost && snap.DLI < prorated*cfg.PurpleDeficitRatio
	}

	if !now.Before(snap.WhiteOverrideUntil) {
		l.fade(snap, models.ActuatorLEDWhite, wantWhite, now, false)
	}

	if snap.LEDWhite != models.StatusOn {
		// Purple follows white off, fading or not.
		if snap.LEDPurple == models.StatusOn {
			l.fade(snap, models.ActuatorLEDPurple, false, now, true)
		}
		return
	}
	if now.Before(snap.PurpleOverrideUntil) {
		return
	}
	l.fade(snap, models.ActuatorLEDPurple, wantPurple, now, false)
}

// fade moves one LED channel toward want. A channel that faded recently is
// left alone until the fade completes, unless force is set.
func (l *Loop) fade(snap *models.Snapshot, a models.Actuator, want bool, now time.Time, force bool) {
	target := models.StatusOff
	token := ledFades[a].off
	if want {
		target = models.StatusOn
		token = ledFades[a].on
	}
	if snap.Status(a) == target {
		return
	}
	if last, ok := l.ctrl.LastFade[a]; ok && !force && now.Sub(last) < l.cfg.Lighting.FadeDuration {
		return
	}
	if l.apply(snap, models.NewCommand(token), string(a)+" fade failed") {
		l.ctrl.LastFade[a] = now
	}
}

package slack

import (
	"fmt"
	"strings"
	"time"

	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/slack-go/slack"
)

var severityIcons = map[models.Severity]string{
	models.SeverityError:   ":rotating_light:",
	models.SeverityWarning: ":warning:",
	models.SeverityInfo:    ":information_source:",
}

func header(text string) slack.Block {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, true, false))
}

func section(markdown string) slack.Block {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, markdown, false, false), nil, nil)
}

func fields(pairs ...string) slack.Block {
	var objs []*slack.TextBlockObject
	for i := 0; i+1 < len(pairs); i += 2 {
		objs = append(objs, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s*\n%s", pairs[i], pairs[i+1]), false, false))
	}
	return slack.NewSectionBlock(nil, objs, nil)
}

func footer(text string) slack.Block {
	return slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, text, false, false))
}

// NewInfoMessage builds a plain informational message.
func NewInfoMessage(title, message string) slack.MsgOption {
	return slack.MsgOptionCompose(
		slack.MsgOptionText(title+": "+message, false),
		slack.MsgOptionBlocks(header(severityIcons[models.SeverityInfo]+" "+title), section(message)),
	)
}

// NewAlertMessage renders one alert with its suggested actions.
func NewAlertMessage(a models.Alert, at time.Time) slack.MsgOption {
	blocks := []slack.Block{
		header(severityIcons[a.Severity] + " " + a.Title),
		section(a.Message),
	}
	if len(a.Actions) > 0 {
		blocks = append(blocks, section("*Suggested actions*\n• "+strings.Join(a.Actions, "\n• ")))
	}
	blocks = append(blocks, footer(fmt.Sprintf("`%s` | %s | %s", a.CaseCode, a.Severity, at.Format("2006-01-02 15:04:05"))))

	return slack.MsgOptionCompose(
		slack.MsgOptionText(fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(a.Severity)), a.Title, a.Message), false),
		slack.MsgOptionBlocks(blocks...),
	)
}

// NewStatusMessage renders the current environment and actuator states.
func NewStatusMessage(snap models.Snapshot) slack.MsgOption {
	emergency := "off"
	if snap.EmergencyStop {
		emergency = ":octagonal_sign: ACTIVE"
	}
	return slack.MsgOptionCompose(
		slack.MsgOptionText(fmt.Sprintf("Greenhouse %.1f°C %.0f%% soil %.0f%%", snap.Temperature, snap.Humidity, snap.SoilPct), false),
		slack.MsgOptionBlocks(
			header(":seedling: Greenhouse status"),
			fields(
				"Temperature", fmt.Sprintf("%.1f °C", snap.Temperature),
				"Humidity", fmt.Sprintf("%.1f %%", snap.Humidity),
				"Soil moisture", fmt.Sprintf("%.1f %%", snap.SoilPct),
				"Light", fmt.Sprintf("%.0f lux", snap.Lux),
				"VPD", fmt.Sprintf("%.2f kPa", snap.VPD),
				"DLI", fmt.Sprintf("%.2f mol/m²/day", snap.DLI),
			),
			fields(
				"Valve", string(snap.Valve),
				"Fan", string(snap.Fan),
				"LED white / purple", fmt.Sprintf("%s / %s", snap.LEDWhite, snap.LEDPurple),
				"Curtain", string(snap.Curtain),
				"Emergency stop", emergency,
			),
			footer("Updated "+snap.UpdatedAt.Format("2006-01-02 15:04:05")),
		),
	)
}

// NewSummaryMessage renders the end-of-day report.
func NewSummaryMessage(snap models.Snapshot, targetDLI float64, day time.Time) slack.MsgOption {
	ratio := 0.0
	if targetDLI > 0 {
		ratio = snap.DLI / targetDLI * 100
	}
	return slack.MsgOptionCompose(
		slack.MsgOptionText(fmt.Sprintf("Daily summary %s: %d waterings, %.2f L, DLI %.2f", day.Format("2006-01-02"), snap.WateringCount, snap.WaterVolumeL, snap.DLI), false),
		slack.MsgOptionBlocks(
			header(":bar_chart: Daily summary "+day.Format("2006-01-02")),
			fields(
				"Waterings", fmt.Sprintf("%d", snap.WateringCount),
				"Water used", fmt.Sprintf("%.2f L", snap.WaterVolumeL),
				"DLI", fmt.Sprintf("%.2f / %.1f mol/m²/day (%.0f%%)", snap.DLI, targetDLI, ratio),
				"Soil moisture", fmt.Sprintf("%.1f %%", snap.SoilPct),
			),
		),
	)
}

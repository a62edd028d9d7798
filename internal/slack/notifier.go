package slack

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/slack-go/slack"
)

// Minimum gap between two messages for the same case code.
const DuplicateGuard = 5 * time.Minute

var resendIntervals = map[models.Severity]time.Duration{
	models.SeverityError:   0,
	models.SeverityWarning: time.Hour,
	models.SeverityInfo:    3 * time.Hour,
}

// Sender delivers a rendered message.
type Sender interface {
	SendRichMessage(options ...slack.MsgOption) bool
}

// Notifier forwards alerts to Slack, throttled per case code (and per
// actuator for actuator failures).
type Notifier struct {
	sender Sender
	clock  clock.Clock

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewNotifier(sender Sender, clk clock.Clock) *Notifier {
	return &Notifier{
		sender:   sender,
		clock:    clk,
		lastSent: make(map[string]time.Time),
	}
}

// ShouldSend reports whether an alert's case is due for delivery.
func (n *Notifier) ShouldSend(a models.Alert) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.due(a, n.clock.Now())
}

// throttleKey separates actuator failures by actuator, so one failing
// actuator does not mute another.
func throttleKey(a models.Alert) string {
	if a.Fault != nil {
		return a.CaseCode + ":" + string(a.Fault.Actuator)
	}
	return a.CaseCode
}

func (n *Notifier) due(a models.Alert, now time.Time) bool {
	last, ok := n.lastSent[throttleKey(a)]
	if !ok {
		return true
	}
	interval, ok := resendIntervals[a.Severity]
	if !ok {
		interval = time.Hour
	}
	return now.Sub(last) >= max(interval, DuplicateGuard)
}

// Notify sends the alerts that are due and returns how many went out.
func (n *Notifier) Notify(alerts []models.Alert) int {
	if n == nil || n.sender == nil {
		return 0
	}

	sent := 0
	for _, a := range alerts {
		now := n.clock.Now()
		n.mu.Lock()
		due := n.due(a, now)
		n.mu.Unlock()
		if !due {
			continue
		}

		if !n.sender.SendRichMessage(NewAlertMessage(a, now)) {
			continue
		}
		n.mu.Lock()
		n.lastSent[throttleKey(a)] = now
		n.mu.Unlock()
		sent++
	}
	if sent > 0 {
		log.Printf("[slack] Sent %d of %d alerts", sent, len(alerts))
	}
	return sent
}

// Summarize posts the daily report.
func (n *Notifier) Summarize(snap models.Snapshot, targetDLI float64) bool {
	if n == nil || n.sender == nil {
		return false
	}
	return n.sender.SendRichMessage(NewSummaryMessage(snap, targetDLI, n.clock.Now()))
}

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/automation"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	slackmsg "github.com/prite36/smartfarm-controller/internal/slack"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// SlackEventsHandler creates a new http.HandlerFunc for handling Slack events.
// It verifies the request signature using the signing secret.
func SlackEventsHandler(cfg *config.Config, st StateStore, replier SlackReplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// An empty secret would let anyone sign requests.
		if cfg.Slack.SigningSecret == "" {
			log.Println("[server] [WARN] Rejecting Slack event: signing secret is not configured")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		verifier, err := slack.NewSecretsVerifier(r.Header, cfg.Slack.SigningSecret)
		if err != nil {
			log.Printf("[server] [WARN] Failed to create secrets verifier: %v", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("[server] [ERROR] Failed to read request body: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// We need to read the body twice, so we create a new reader with the same content.
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		if _, err := verifier.Write(body); err != nil {
			log.Printf("[server] [ERROR] Failed to write body to verifier: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if err := verifier.Ensure(); err != nil {
			log.Printf("[server] [WARN] Invalid Slack signature: %v", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			log.Printf("[server] [ERROR] Failed to parse Slack event: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch eventsAPIEvent.Type {
		case slackevents.URLVerification:
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(challenge.Challenge))
			log.Printf("[server] Responded to Slack URL verification challenge.")

		case slackevents.CallbackEvent:
			if mention, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
				handleMention(mention, st, replier)
			} else {
				log.Printf("[server] Received a callback event: %v", eventsAPIEvent.InnerEvent.Type)
			}
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}

// handleMention answers "@bot status" in the channel it was asked in.
func handleMention(ev *slackevents.AppMentionEvent, st StateStore, replier SlackReplier) {
	if replier == nil || !strings.Contains(strings.ToLower(ev.Text), "status") {
		return
	}
	snap := st.Snapshot()
	// Slack expects the event to be acknowledged within 3 seconds.
	go func() {
		if !replier.Reply(ev.Channel, slackmsg.NewStatusMessage(snap)) {
			log.Printf("[server] [WARN] Failed to reply to mention in %s", ev.Channel)
		}
	}()
}

func LatestHandler(st StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.Snapshot())
	}
}

func AlertsHandler(alerts AlertSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := alerts.Latest()
		if list == nil {
			list = []models.Alert{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// HistoryHandler lists recent actuations; ?limit= caps the rows (default 50).
func HistoryHandler(history HistorySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			writeError(w, http.StatusServiceUnavailable, "history is disabled")
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = n
		}
		rows, err := history.Recent(limit)
		if err != nil {
			log.Printf("[server] [ERROR] Failed to load history: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// CommandRequest is the request body for the CommandHandler
type CommandRequest struct {
	Command string `json:"command"`
}

type CommandResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
}

// CommandHandler sends one actuator command, e.g. {"command":"CURTAIN_OPEN:-2048"}.
func CommandHandler(commands CommandExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Error parsing request body")
			return
		}
		cmd, err := models.ParseCommand(req.Command)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[server] Received API request to send %s", cmd)
		execute(w, commands, cmd)
	}
}

type EmergencyRequest struct {
	Active bool `json:"active"`
}

// EmergencyHandler asserts or releases the emergency stop.
func EmergencyHandler(commands CommandExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmergencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Error parsing request body")
			return
		}
		name := models.CmdEmergencyResume
		if req.Active {
			name = models.CmdEmergencyStop
		}
		log.Printf("[server] [WARN] Received API request for %s", name)
		execute(w, commands, models.NewCommand(name))
	}
}

func execute(w http.ResponseWriter, commands CommandExecutor, cmd models.Command) {
	err := commands.Execute(cmd, models.SourceDashboard)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CommandResponse{Status: "ok", Command: cmd.Wire()})
	case errors.Is(err, automation.ErrEmergencyStop):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// OverrideRequest holds off automatic lighting on one LED channel.
// Zero minutes releases the channel.
type OverrideRequest struct {
	Actuator models.Actuator `json:"actuator"`
	Minutes  int             `json:"minutes"`
}

type OverrideResponse struct {
	Actuator models.Actuator `json:"actuator"`
	Until    *time.Time      `json:"until"`
}

func OverrideHandler(st StateStore, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OverrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Error parsing request body")
			return
		}
		if req.Actuator != models.ActuatorLEDWhite && req.Actuator != models.ActuatorLEDPurple {
			writeError(w, http.StatusBadRequest, "actuator must be led_white or led_purple")
			return
		}
		if req.Minutes < 0 {
			writeError(w, http.StatusBadRequest, "minutes must not be negative")
			return
		}

		resp := OverrideResponse{Actuator: req.Actuator}
		var until time.Time
		if req.Minutes > 0 {
			until = clk.Now().Add(time.Duration(req.Minutes) * time.Minute)
			resp.Until = &until
		}
		st.SetOverride(req.Actuator, until)
		log.Printf("[server] Lighting override on %s for %d minutes", req.Actuator, req.Minutes)
		writeJSON(w, http.StatusOK, resp)
	}
}

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/telemetry"
	"github.com/rs/cors"
	"github.com/slack-go/slack"
)

type StatusResponse struct {
	Environment string `json:"environment"`
	Status      string `json:"status"`
}

// StateStore is the part of the shared state the dashboard touches.
type StateStore interface {
	Snapshot() models.Snapshot
	SetOverride(a models.Actuator, until time.Time)
}

type AlertSource interface {
	Latest() []models.Alert
}

// CommandExecutor runs manual actuator commands.
type CommandExecutor interface {
	Execute(cmd models.Command, source string) error
}

type HistorySource interface {
	Recent(limit int) ([]models.ActuationHistory, error)
}

type SlackReplier interface {
	Reply(channelID string, options ...slack.MsgOption) bool
}

// Deps are the collaborators behind the API. History and Slack may be nil.
type Deps struct {
	State    StateStore
	Alerts   AlertSource
	Commands CommandExecutor
	History  HistorySource
	Slack    SlackReplier
	Clock    clock.Clock
}

// NewRouter builds the API routes.
func NewRouter(cfg *config.Config, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "OK")
	}).Methods(http.MethodGet)

	r.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)

	// Slack events endpoint
	r.HandleFunc("/slack/events", SlackEventsHandler(cfg, deps.State, deps.Slack)).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/latest", LatestHandler(deps.State)).Methods(http.MethodGet)
	api.HandleFunc("/alerts", AlertsHandler(deps.Alerts)).Methods(http.MethodGet)
	api.HandleFunc("/history", HistoryHandler(deps.History)).Methods(http.MethodGet)
	api.HandleFunc("/command", CommandHandler(deps.Commands)).Methods(http.MethodPost)
	api.HandleFunc("/emergency", EmergencyHandler(deps.Commands)).Methods(http.MethodPost)
	api.HandleFunc("/override", OverrideHandler(deps.State, deps.Clock)).Methods(http.MethodPost)

	// API endpoint to get application status
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
		writeJSON(w, http.StatusOK, StatusResponse{Environment: env, Status: "ok"})
	}).Methods(http.MethodGet)

	return r
}

// New creates a new HTTP server and sets up the routes.
func New(cfg *config.Config, deps Deps) *http.Server {
	log.Printf("[server] API Server configured to listen on %s", cfg.Server.Addr)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	})

	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           c.Handler(NewRouter(cfg, deps)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] [ERROR] Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

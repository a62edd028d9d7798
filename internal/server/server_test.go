package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/automation"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/state"
	"github.com/slack-go/slack"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeExecutor struct {
	err      error
	commands []string
}

func (f *fakeExecutor) Execute(cmd models.Command, source string) error {
	f.commands = append(f.commands, cmd.Wire()+"@"+source)
	return f.err
}

type fakeAlerts []models.Alert

func (f fakeAlerts) Latest() []models.Alert { return f }

type fakeReplier struct {
	replies chan string
}

func (f *fakeReplier) Reply(channelID string, options ...slack.MsgOption) bool {
	f.replies <- channelID
	return true
}

type testEnv struct {
	handler  http.Handler
	state    *state.Store
	executor *fakeExecutor
	replier  *fakeReplier
	clock    *clock.Mock
}

func newTestEnv(t *testing.T, alerts []models.Alert) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Slack.SigningSecret = signingSecret

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	env := &testEnv{
		state:    state.NewStore(mock, models.StatusClosed),
		executor: &fakeExecutor{},
		replier:  &fakeReplier{replies: make(chan string, 1)},
		clock:    mock,
	}
	env.handler = NewRouter(cfg, Deps{
		State:    env.state,
		Alerts:   fakeAlerts(alerts),
		Commands: env.executor,
		Slack:    env.replier,
		Clock:    mock,
	})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndLatest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.state.Update(models.Reading{Temperature: 24.5, Humidity: 61, SoilPct: 40, Lux: 900})

	if rec := env.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("Unexpected health response %d %q", rec.Code, rec.Body.String())
	}

	rec := env.do(http.MethodGet, "/api/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.Temperature != 24.5 || snap.Curtain != models.StatusClosed {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestAlertsHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(http.MethodGet, "/api/alerts", ""); strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected an empty list, got %q", rec.Body.String())
	}

	env = newTestEnv(t, []models.Alert{{ID: 1, CaseCode: models.CaseSoilCriticalLow, Severity: models.SeverityError}})
	var alerts []models.Alert
	if err := json.Unmarshal(env.do(http.MethodGet, "/api/alerts", "").Body.Bytes(), &alerts); err != nil {
		t.Fatalf("Failed to decode alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].CaseCode != models.CaseSoilCriticalLow {
		t.Errorf("Unexpected alerts %+v", alerts)
	}
}

func TestCommandHandler(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantSent bool
	}{
		{"valid command", `{"command":"fan_on"}`, nil, http.StatusOK, true},
		{"step command", `{"command":"CURTAIN_OPEN:-2048"}`, nil, http.StatusOK, true},
		{"unknown command", `{"command":"SELF_DESTRUCT"}`, nil, http.StatusBadRequest, false},
		{"missing steps", `{"command":"CURTAIN_OPEN"}`, nil, http.StatusBadRequest, false},
		{"bad json", `{`, nil, http.StatusBadRequest, false},
		{"emergency active", `{"command":"FAN_ON"}`, automation.ErrEmergencyStop, http.StatusConflict, true},
		{"board unreachable", `{"command":"FAN_ON"}`, fmt.Errorf("%w: FAN_ON", automation.ErrCommandFailed), http.StatusBadGateway, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.executor.err = tc.err

			rec := env.do(http.MethodPost, "/api/command", tc.body)

			if rec.Code != tc.wantCode {
				t.Errorf("Expected %d, got %d (%s)", tc.wantCode, rec.Code, rec.Body.String())
			}
			if sent := len(env.executor.commands) > 0; sent != tc.wantSent {
				t.Errorf("Expected sent %v, got %v", tc.wantSent, env.executor.commands)
			}
		})
	}
}

func TestCommandHandlerRejectsGet(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(http.MethodGet, "/api/command", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestEmergencyHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(http.MethodPost, "/api/emergency", `{"active":true}`)
	env.do(http.MethodPost, "/api/emergency", `{"active":false}`)

	want := []string{"EMERGENCY_STOP@dashboard", "EMERGENCY_RESUME@dashboard"}
	if len(env.executor.commands) != 2 || env.executor.commands[0] != want[0] || env.executor.commands[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, env.executor.commands)
	}
}

func TestOverrideHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/override", `{"actuator":"led_white","minutes":45}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got, want := env.state.Snapshot().WhiteOverrideUntil, env.clock.Now().Add(45*time.Minute); !got.Equal(want) {
		t.Errorf("Expected override until %s, got %s", want, got)
	}

	env.do(http.MethodPost, "/api/override", `{"actuator":"led_white","minutes":0}`)
	if !env.state.Snapshot().WhiteOverrideUntil.IsZero() {
		t.Error("Expected override cleared")
	}

	if rec := env.do(http.MethodPost, "/api/override", `{"actuator":"fan","minutes":5}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non-LED actuator, got %d", rec.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(http.MethodGet, "/api/history", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a history store, got %d", rec.Code)
	}
}

func signedSlackRequest(body string) *http.Request {
	return signedSlackRequestWith(signingSecret, body)
}

func signedSlackRequestWith(secret, body string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestSlackURLVerification(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"token":"x","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedSlackRequest(body))

	if rec.Code != http.StatusOK || rec.Body.String() != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Errorf("Unexpected challenge response %d %q", rec.Code, rec.Body.String())
	}
}

func TestSlackRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	req := signedSlackRequest(`{"type":"url_verification","challenge":"abc"}`)
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestSlackRejectsWithoutSigningSecret(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Slack.SigningSecret = ""
	mock := clock.NewMock()
	handler := NewRouter(cfg, Deps{
		State:    state.NewStore(mock, models.StatusClosed),
		Alerts:   fakeAlerts(nil),
		Commands: &fakeExecutor{},
		Clock:    mock,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedSlackRequestWith("", `{"type":"url_verification","challenge":"abc"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a signing secret, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "abc") {
		t.Error("Expected the challenge not to be echoed")
	}
}

func TestSlackStatusMention(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"token":"x","team_id":"T1","api_app_id":"A1","type":"event_callback","event_id":"Ev1","event_time":1700000000,` +
		`"event":{"type":"app_mention","user":"U1","text":"<@U0BOT> status please","ts":"1700000000.000100","channel":"C42","event_ts":"1700000000.000100"}}`

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedSlackRequest(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	select {
	case channel := <-env.replier.replies:
		if channel != "C42" {
			t.Errorf("Expected reply in C42, got %s", channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a status reply")
	}
}

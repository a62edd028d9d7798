package service

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/prite36/smartfarm-controller/internal/automation"
	"github.com/prite36/smartfarm-controller/internal/climate"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/history"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/mqtt"
	"github.com/prite36/smartfarm-controller/internal/scheduler"
	"github.com/prite36/smartfarm-controller/internal/serial"
	"github.com/prite36/smartfarm-controller/internal/server"
	"github.com/prite36/smartfarm-controller/internal/slack"
	"github.com/prite36/smartfarm-controller/internal/state"
)

const (
	reconnectDelay  = 5 * time.Second
	shutdownTimeout = 10 * time.Second

	// Status is republished to the broker this often.
	statusInterval = 30 * time.Second
)

type App struct {
	cfg   *config.Config
	clock clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	state        *state.Store
	sensorPort   serial.Port
	actuatorPort serial.Port
	gateway      *serial.Gateway
	ingestor     *serial.Ingestor
	loop         *automation.Loop
	manual       *automation.Manual
	history      *history.Repository
	mqttClient   *mqtt.Client
	scheduler    *scheduler.Scheduler
	server       *http.Server

	wg sync.WaitGroup
}

func NewApp(cfg *config.Config) (*App, error) {
	clk := clock.New()
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cfg: cfg, clock: clk, ctx: ctx, cancel: cancel}

	curtain := models.ActuatorStatus(strings.ToUpper(cfg.Automation.Curtain.InitialState))
	a.state = state.NewStore(clk, curtain)

	// A missing actuator board is not fatal: the gateway fails every send,
	// the failures surface as actuator fault alerts and runActuatorLink
	// keeps trying to open it.
	port, err := serial.Open(cfg.Serial.ActuatorPort, cfg.Serial.BaudRate)
	if err != nil {
		log.Printf("[app] [WARN] Actuator board unavailable: %v", err)
	} else {
		a.actuatorPort = port
	}
	a.gateway = serial.NewGateway(nil, cfg.Serial.SettleDelay, clk)
	if a.actuatorPort != nil {
		a.gateway.Attach(a.actuatorPort)
	}

	if port, err := serial.Open(cfg.Serial.SensorPort, cfg.Serial.BaudRate); err != nil {
		log.Printf("[app] [WARN] Sensor board unavailable, will keep retrying: %v", err)
	} else {
		a.sensorPort = port
	}

	var recorder automation.Recorder
	if cfg.Database.Enabled {
		repo, err := history.Open(cfg.DSN())
		if err != nil {
			a.closePorts()
			return nil, err
		}
		a.history = repo
		recorder = repo
	}

	a.loop = automation.New(cfg.Automation, a.state, a.gateway, climate.NewFileStore(cfg.Automation.DLIStorePath, clk), clk,
		automation.WithRecorder(recorder))
	a.restoreDaily()

	a.manual = automation.NewManual(a.state, a.gateway, a.loop, recorder, clk, cfg.Automation.Lighting.OverrideDuration)
	a.ingestor = serial.NewIngestor(a.state, a.boardCommand, a.requestStop)

	slackClient := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.ChannelID, clk)
	var notifier *slack.Notifier
	if slackClient != nil {
		notifier = slack.NewNotifier(slackClient, clk)
	}

	var sinks []scheduler.AlertSink
	if notifier != nil {
		sinks = append(sinks, notifier)
	}
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(cfg.MQTT, a.state)
		if err != nil {
			a.shutdownClients()
			return nil, err
		}
		a.mqttClient = mqttClient
		sinks = append(sinks, mqttClient)
	}

	var summary scheduler.Summarizer
	if notifier != nil {
		summary = notifier
	}
	a.scheduler, err = scheduler.NewScheduler(cfg, a.state, clk, summary, sinks...)
	if err != nil {
		a.shutdownClients()
		return nil, err
	}

	deps := server.Deps{
		State:    a.state,
		Alerts:   a.scheduler,
		Commands: a.manual,
		Clock:    clk,
	}
	if a.history != nil {
		deps.History = a.history
	}
	if slackClient != nil {
		deps.Slack = slackClient
	}
	a.server = server.New(cfg, deps)

	return a, nil
}

// restoreDaily reloads today's watering totals so a restart does not reset
// the counters shown on the dashboard.
func (a *App) restoreDaily() {
	if a.history == nil {
		return
	}
	now := a.clock.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, volume, err := a.history.WateringSince(start)
	if err != nil {
		log.Printf("[app] [WARN] Could not restore daily watering totals: %v", err)
		return
	}
	a.loop.RestoreDaily(int(count), volume)
	log.Printf("[app] Restored daily totals: %d waterings, %.2f L", count, volume)
}

func (a *App) boardCommand(cmd models.Command) {
	if err := a.manual.Execute(cmd, models.SourceBoard); err != nil {
		log.Printf("[app] [ERROR] Board command %s failed: %v", cmd, err)
	}
}

func (a *App) requestStop() {
	a.cancel()
}

func (a *App) Start() error {
	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.scheduler.Start(); err != nil {
		a.Stop()
		return err
	}

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.loop.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.runIngest(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.runActuatorLink(ctx)
	}()

	if a.mqttClient != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.mqttClient.RunStatusPublisher(ctx, a.state.Snapshot, a.clock, statusInterval)
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[app] HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Println("Greenhouse controller started. Press Ctrl+C to stop.")

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		log.Printf("[app] [ERROR] HTTP server failed: %v", err)
	}

	a.Stop()
	return err
}

// runIngest feeds the sensor board into the state store, reopening the
// port whenever it drops.
func (a *App) runIngest(ctx context.Context) {
	for ctx.Err() == nil {
		if a.sensorPort == nil {
			port, err := serial.OpenContext(ctx, a.cfg.Serial.SensorPort, a.cfg.Serial.BaudRate)
			if err != nil {
				log.Printf("[app] [WARN] %v", err)
				if !a.pause(ctx) {
					return
				}
				continue
			}
			a.sensorPort = port
		}

		err := a.ingestor.Run(ctx, a.sensorPort)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[app] [WARN] Sensor board disconnected: %v", err)
		if cerr := a.sensorPort.Close(); cerr != nil {
			log.Printf("[app] [WARN] Failed to close sensor port: %v", cerr)
		}
		a.sensorPort = nil
		if !a.pause(ctx) {
			return
		}
	}
}

// runActuatorLink reopens the actuator port whenever the gateway has given
// up on it after a write error.
func (a *App) runActuatorLink(ctx context.Context) {
	for a.pause(ctx) {
		if a.gateway.Connected() {
			continue
		}
		if a.actuatorPort != nil {
			log.Println("[app] [WARN] Actuator board disconnected, reopening")
			if err := a.actuatorPort.Close(); err != nil {
				log.Printf("[app] [WARN] Failed to close actuator port: %v", err)
			}
			a.actuatorPort = nil
		}

		port, err := serial.OpenContext(ctx, a.cfg.Serial.ActuatorPort, a.cfg.Serial.BaudRate)
		if err != nil {
			log.Printf("[app] [WARN] %v", err)
			continue
		}
		a.actuatorPort = port
		a.gateway.Attach(port)
		log.Println("[app] Actuator board connected")
	}
}

func (a *App) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-a.clock.After(reconnectDelay):
		return true
	}
}

func (a *App) Stop() {
	log.Println("Shutting down...")

	a.cancel()
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			log.Printf("[app] [WARN] HTTP server shutdown: %v", err)
		}
		cancel()
	}

	// The loop may be holding the valve open; it closes it before returning.
	a.wg.Wait()

	a.gateway.MarkClosed()
	a.shutdownClients()

	log.Println("Greenhouse controller stopped")
}

func (a *App) shutdownClients() {
	if a.mqttClient != nil {
		a.mqttClient.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
	a.closePorts()
}

func (a *App) closePorts() {
	for _, p := range []serial.Port{a.sensorPort, a.actuatorPort} {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			log.Printf("[app] [WARN] Failed to close serial port: %v", err)
		}
	}
}

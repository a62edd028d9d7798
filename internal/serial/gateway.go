// Package serial talks to the two microcontroller boards: the actuator
// board receives commands through Gateway, the sensor board is read by
// Ingestor.
package serial

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/models"
	"github.com/prite36/smartfarm-controller/internal/telemetry"
)

var (
	ErrNoChannel     = errors.New("serial channel not present")
	ErrChannelClosed = errors.New("serial channel not open")
)

// Channel is the write side of the actuator serial line.
type Channel interface {
	Write(p []byte) (int, error)
	// Drain blocks until everything written has been transmitted.
	Drain() error
}

// Gateway is the only writer to the actuator board. Every command, whatever
// actuator it addresses, holds the same lock for its write and settle delay,
// since all of them share one wire.
type Gateway struct {
	mu     sync.Mutex
	ch     Channel
	open   bool
	settle time.Duration
	clock  clock.Clock
}

// NewGateway wraps ch. A nil channel yields a gateway whose sends all fail.
func NewGateway(ch Channel, settle time.Duration, clk clock.Clock) *Gateway {
	return &Gateway{
		ch:     ch,
		open:   ch != nil,
		settle: settle,
		clock:  clk,
	}
}

// Send writes one command and waits for the settle delay. It reports
// whether the command reached the wire; failures are logged, never raised.
func (g *Gateway) Send(cmd models.Command) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.write(cmd)
	if err != nil {
		if g.open && g.ch != nil {
			// An I/O error means the device is gone; stay closed until a
			// reopened port is attached.
			g.open = false
		}
		log.Printf("[gateway] [ERROR] %s command %s failed: %v", cmd.Actuator(), cmd, err)
		telemetry.CommandsTotal.WithLabelValues(cmd.Name, "failed").Inc()
		return false
	}
	log.Printf("[gateway] Sent %s command %s", cmd.Actuator(), cmd)
	telemetry.CommandsTotal.WithLabelValues(cmd.Name, "sent").Inc()

	if g.settle > 0 {
		g.clock.Sleep(g.settle)
	}
	return true
}

func (g *Gateway) write(cmd models.Command) error {
	if g.ch == nil {
		return ErrNoChannel
	}
	if !g.open {
		return ErrChannelClosed
	}
	if _, err := g.ch.Write([]byte(cmd.Wire() + "\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := g.ch.Drain(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Attach replaces the underlying channel, e.g. after a reconnect.
func (g *Gateway) Attach(ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ch = ch
	g.open = ch != nil
}

// Connected reports whether a channel is attached and usable.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch != nil && g.open
}

// MarkClosed makes subsequent sends fail until a channel is attached again.
func (g *Gateway) MarkClosed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
}

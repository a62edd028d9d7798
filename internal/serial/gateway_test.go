package serial

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prite36/smartfarm-controller/internal/models"
)

type fakeChannel struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writeErr error
	drainErr error
	drains   int
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.buf.Write(p)
}

func (f *fakeChannel) Drain() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drains++
	return f.drainErr
}

func (f *fakeChannel) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func TestGatewaySend(t *testing.T) {
	ch := &fakeChannel{}
	g := NewGateway(ch, 0, clock.New())

	if !g.Send(models.NewCommand(models.CmdFanOn)) {
		t.Fatal("Expected FAN_ON to succeed")
	}
	if !g.Send(models.NewStepCommand(models.CmdCurtainOpen, -2048)) {
		t.Fatal("Expected CURTAIN_OPEN to succeed")
	}

	want := "FAN_ON\nCURTAIN_OPEN:-2048\n"
	if got := ch.String(); got != want {
		t.Errorf("Expected %q on the wire, got %q", want, got)
	}
	if ch.drains != 2 {
		t.Errorf("Expected 2 flushes, got %d", ch.drains)
	}
}

func TestGatewaySendFailures(t *testing.T) {
	testCases := []struct {
		name    string
		gateway func() *Gateway
	}{
		{
			name:    "no channel",
			gateway: func() *Gateway { return NewGateway(nil, 0, clock.New()) },
		},
		{
			name: "channel closed",
			gateway: func() *Gateway {
				g := NewGateway(&fakeChannel{}, 0, clock.New())
				g.MarkClosed()
				return g
			},
		},
		{
			name: "write error",
			gateway: func() *Gateway {
				return NewGateway(&fakeChannel{writeErr: errors.New("device gone")}, 0, clock.New())
			},
		},
		{
			name: "flush error",
			gateway: func() *Gateway {
				return NewGateway(&fakeChannel{drainErr: errors.New("io error")}, 0, clock.New())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.gateway().Send(models.ValveToggle(models.StatusOff, models.StatusOn)) {
				t.Error("Expected Send to report failure")
			}
		})
	}
}

func TestGatewayAttachReopens(t *testing.T) {
	g := NewGateway(nil, 0, clock.New())
	if g.Send(models.NewCommand(models.CmdFanOff)) {
		t.Fatal("Expected send without channel to fail")
	}

	ch := &fakeChannel{}
	g.Attach(ch)
	if !g.Send(models.NewCommand(models.CmdFanOff)) {
		t.Fatal("Expected send after Attach to succeed")
	}
	if ch.String() != "FAN_OFF\n" {
		t.Errorf("Expected FAN_OFF on the wire, got %q", ch.String())
	}
}

func TestGatewayClosesOnWriteError(t *testing.T) {
	ch := &fakeChannel{writeErr: errors.New("device gone")}
	g := NewGateway(ch, 0, clock.New())
	if !g.Connected() {
		t.Fatal("Expected a fresh gateway to be connected")
	}

	if g.Send(models.NewCommand(models.CmdFanOn)) {
		t.Fatal("Expected the write error to fail the send")
	}
	if g.Connected() {
		t.Fatal("Expected the gateway to close after a write error")
	}

	ch.writeErr = nil
	if g.Send(models.NewCommand(models.CmdFanOn)) {
		t.Fatal("Expected sends to fail until a channel is attached again")
	}
	if ch.String() != "" {
		t.Errorf("Expected nothing on the wire, got %q", ch.String())
	}

	fresh := &fakeChannel{}
	g.Attach(fresh)
	if !g.Connected() || !g.Send(models.NewCommand(models.CmdFanOn)) {
		t.Fatal("Expected the reattached channel to accept commands")
	}
	if fresh.String() != "FAN_ON\n" {
		t.Errorf("Expected FAN_ON on the new channel, got %q", fresh.String())
	}
}

func TestGatewaySerializesWithSettleDelay(t *testing.T) {
	ch := &fakeChannel{}
	settle := 20 * time.Millisecond
	g := NewGateway(ch, settle, clock.New())

	start := time.Now()
	var wg sync.WaitGroup
	for _, name := range []string{models.CmdFanOn, models.CmdValveToggle, models.CmdLEDFadeOn} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			g.Send(models.NewCommand(name))
		}(name)
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 3*settle {
		t.Errorf("Expected commands to be serialized by the settle delay (>= %v), took %v", 3*settle, elapsed)
	}
	lines := bytes.Split(bytes.TrimSpace([]byte(ch.String())), []byte("\n"))
	if len(lines) != 3 {
		t.Errorf("Expected 3 complete lines, got %d: %q", len(lines), ch.String())
	}
}

package serial

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prite36/smartfarm-controller/internal/models"
)

type recordingSink struct {
	mu       sync.Mutex
	readings []models.Reading
}

func (r *recordingSink) Update(reading models.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, reading)
}

func TestParseFrame(t *testing.T) {
	testCases := []struct {
		name        string
		line        string
		expectError bool
		expected    models.Reading
		expectVPD   bool
	}{
		{
			name:      "valid frame",
			line:      "DATA,24.5,61.0,512,42,1800,1.20",
			expected:  models.Reading{Temperature: 24.5, Humidity: 61, SoilPct: 42, Lux: 1800},
			expectVPD: true,
		},
		{
			name:     "vpd placeholder",
			line:     "DATA,24.5,61.0,512,42,1800,-",
			expected: models.Reading{Temperature: 24.5, Humidity: 61, SoilPct: 42, Lux: 1800},
		},
		{name: "too few fields", line: "DATA,24.5,61.0,512,42", expectError: true},
		{name: "not a number", line: "DATA,abc,61.0,512,42,1800,1.2", expectError: true},
		{name: "humidity out of range", line: "DATA,24.5,161.0,512,42,1800,1.2", expectError: true},
		{name: "wrong prefix", line: "DATX,24.5,61.0,512,42,1800,1.2", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFrame(tc.line)
			if tc.expectError {
				if err == nil {
					t.Fatalf("Expected error for %q", tc.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame failed: %v", err)
			}
			if got.Temperature != tc.expected.Temperature || got.Humidity != tc.expected.Humidity ||
				got.SoilPct != tc.expected.SoilPct || got.Lux != tc.expected.Lux {
				t.Errorf("Expected %+v, got %+v", tc.expected, got)
			}
			if (got.VPD != nil) != tc.expectVPD {
				t.Errorf("Expected VPD present=%v, got %v", tc.expectVPD, got.VPD)
			}
		})
	}
}

func TestIngestorRun(t *testing.T) {
	sink := &recordingSink{}
	var commands []models.Command
	shutdown := false
	in := NewIngestor(sink, func(c models.Command) { commands = append(commands, c) }, func() { shutdown = true })

	input := strings.Join([]string{
		"DATA,24.5,61.0,512,42,1800,1.20",
		"garbage",
		"DATA,broken",
		"CMD_FAN_ON",
		"CMD_NOPE",
		"CMD_M1",
		"SYS_OFF",
		"",
	}, "\n")

	if err := in.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(sink.readings))
	}
	if len(commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(commands))
	}
	if commands[0].Name != models.CmdFanOn || commands[1].Name != models.CmdValveToggle {
		t.Errorf("Expected FAN_ON then M1, got %s then %s", commands[0].Name, commands[1].Name)
	}
	if !shutdown {
		t.Error("Expected SYS_OFF to request shutdown")
	}
}

func TestIngestorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := NewIngestor(&recordingSink{}, nil, nil)
	if err := in.Run(ctx, strings.NewReader("DATA,1,2,3,4,5,6\n")); err != nil {
		t.Fatalf("Expected nil error on cancel, got %v", err)
	}
}

package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/prite36/smartfarm-controller/internal/models"
)

const (
	framePrefix   = "DATA,"
	commandPrefix = "CMD_"
	shutdownLine  = "SYS_OFF"
	// DATA,<temp>,<hum>,<soil_raw>,<soil_pct>,<lux>,<vpd>
	frameFields = 7
)

// ReadingSink receives parsed sensor readings.
type ReadingSink interface {
	Update(r models.Reading)
}

// Ingestor reads line frames from the sensor board.
type Ingestor struct {
	sink       ReadingSink
	onCommand  func(models.Command)
	onShutdown func()
}

// NewIngestor creates an ingestor. onCommand receives button commands from
// the board; onShutdown is called for SYS_OFF. Either may be nil.
func NewIngestor(sink ReadingSink, onCommand func(models.Command), onShutdown func()) *Ingestor {
	return &Ingestor{sink: sink, onCommand: onCommand, onShutdown: onShutdown}
}

// Run reads from r until ctx is cancelled or r fails. Reads returning no
// data (a read timeout) are treated as idle polls.
func (in *Ingestor) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	var pending strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b != '\n' {
				pending.WriteByte(b)
				continue
			}
			in.HandleLine(pending.String())
			pending.Reset()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read sensor board: %w", err)
		}
	}
}

// HandleLine processes one line from the sensor board.
func (in *Ingestor) HandleLine(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return
	case strings.HasPrefix(line, framePrefix):
		reading, err := ParseFrame(line)
		if err != nil {
			log.Printf("[ingest] Dropping malformed frame %q: %v", line, err)
			return
		}
		in.sink.Update(reading)
	case strings.HasPrefix(line, commandPrefix):
		cmd, err := models.ParseCommand(strings.TrimPrefix(line, commandPrefix))
		if err != nil {
			log.Printf("[ingest] Ignoring board command %q: %v", line, err)
			return
		}
		log.Printf("[ingest] Board command: %s", cmd)
		if in.onCommand != nil {
			in.onCommand(cmd)
		}
	case line == shutdownLine:
		log.Println("[ingest] Shutdown requested by sensor board")
		if in.onShutdown != nil {
			in.onShutdown()
		}
	default:
		log.Printf("[ingest] No handler for line: %s", line)
	}
}

// ParseFrame decodes a DATA frame. The board's own VPD field is ignored
// when it is not a number.
func ParseFrame(line string) (models.Reading, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != frameFields || parts[0]+"," != framePrefix {
		return models.Reading{}, fmt.Errorf("expected %d fields, got %d", frameFields, len(parts))
	}

	values := make([]float64, 5)
	// temp, hum, soil_raw, soil_pct, lux
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return models.Reading{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	reading := models.Reading{
		Temperature: values[0],
		Humidity:    values[1],
		SoilPct:     values[3],
		Lux:         values[4],
	}
	if err := reading.Validate(); err != nil {
		return models.Reading{}, err
	}
	if vpd, err := strconv.ParseFloat(strings.TrimSpace(parts[6]), 64); err == nil {
		reading.VPD = &vpd
	}
	return reading, nil
}

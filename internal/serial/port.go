package serial

import (
	"context"
	"fmt"
	"log"
	"time"

	bugst "go.bug.st/serial"
)

const (
	openRetries    = 5
	openRetryDelay = 5 * time.Second
	// The board resets when the port opens; give it time to boot.
	bootDelay = 2 * time.Second
)

// Port is an open serial device.
type Port = bugst.Port

// Open opens a serial device, retrying a few times before giving up.
func Open(path string, baud int) (Port, error) {
	return OpenContext(context.Background(), path, baud)
}

// OpenContext is Open with the retry wait cut short when ctx ends.
func OpenContext(ctx context.Context, path string, baud int) (Port, error) {
	mode := &bugst.Mode{BaudRate: baud}

	var lastErr error
	for i := 1; i <= openRetries; i++ {
		port, err := bugst.Open(path, mode)
		if err == nil {
			time.Sleep(bootDelay)
			if err := port.ResetInputBuffer(); err != nil {
				log.Printf("[serial] [WARN] Failed to reset input buffer on %s: %v", path, err)
			}
			if err := port.SetReadTimeout(time.Second); err != nil {
				log.Printf("[serial] [WARN] Failed to set read timeout on %s: %v", path, err)
			}
			log.Printf("[serial] Opened %s at %d baud", path, baud)
			return port, nil
		}

		lastErr = err
		log.Printf("[serial] Open attempt %d/%d for %s failed: %v", i, openRetries, path, err)
		if i < openRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(openRetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to open serial port %s after %d attempts: %w", path, openRetries, lastErr)
}

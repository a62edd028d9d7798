package climate

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
)

// Store persists the DLI accumulator between process runs.
type Store interface {
	Load() (float64, string)
	Save(value float64, date string)
}

type dliRecord struct {
	DLI         float64 `json:"dli"`
	Date        string  `json:"date"`
	LastUpdated string  `json:"last_updated"`
}

// FileStore keeps the accumulator in a small JSON document.
type FileStore struct {
	path  string
	clock clock.Clock
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string, clk clock.Clock) *FileStore {
	return &FileStore{path: path, clock: clk}
}

// Load returns the persisted value and date, or (0, "") when nothing
// usable is on disk.
func (s *FileStore) Load() (float64, string) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[dli] Failed to read %s: %v", s.path, err)
		}
		return 0, ""
	}

	var rec dliRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[dli] Ignoring unreadable state file %s: %v", s.path, err)
		return 0, ""
	}
	if _, err := time.Parse(DateLayout, rec.Date); err != nil || rec.DLI < 0 {
		log.Printf("[dli] Ignoring invalid record in %s: dli=%v date=%q", s.path, rec.DLI, rec.Date)
		return 0, ""
	}
	return rec.DLI, rec.Date
}

// Save writes the accumulator. Failures are logged only: a lost record
// costs accuracy after a restart, nothing more.
func (s *FileStore) Save(value float64, date string) {
	if err := s.write(value, date); err != nil {
		log.Printf("[dli] [WARN] Failed to persist DLI state: %v", err)
	}
}

func (s *FileStore) write(value float64, date string) error {
	data, err := json.Marshal(dliRecord{
		DLI:         value,
		Date:        date,
		LastUpdated: s.clock.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode DLI state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".dli-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

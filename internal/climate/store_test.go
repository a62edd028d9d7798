package climate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dli.json")
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	store := NewFileStore(path, mock)

	store.Save(4.25, "2026-05-01")

	value, date := store.Load()
	if value != 4.25 || date != "2026-05-01" {
		t.Fatalf("Expected (4.25, 2026-05-01), got (%v, %s)", value, date)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"dli", "date", "last_updated"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in persisted record", key)
		}
	}
	want := mock.Now().Format(time.RFC3339)
	if raw["last_updated"] != want {
		t.Errorf("Expected last_updated %q from the injected clock, got %v", want, raw["last_updated"])
	}
}

func TestFileStoreLoadFallsBackToZero(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "not json"},
		{name: "bad date", content: `{"dli": 3.2, "date": "yesterday"}`},
		{name: "negative value", content: `{"dli": -1, "date": "2026-05-01"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".json")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			value, date := NewFileStore(path, clock.NewMock()).Load()
			if value != 0 || date != "" {
				t.Errorf("Expected (0, \"\"), got (%v, %q)", value, date)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		value, date := NewFileStore(filepath.Join(dir, "absent.json"), clock.NewMock()).Load()
		if value != 0 || date != "" {
			t.Errorf("Expected (0, \"\"), got (%v, %q)", value, date)
		}
	})
}

func TestFileStoreSaveFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// The parent "directory" is a regular file, so every write fails.
	store := NewFileStore(filepath.Join(blocker, "dli.json"), clock.NewMock())
	store.Save(1, "2026-05-01")

	if value, date := store.Load(); value != 0 || date != "" {
		t.Errorf("Expected nothing persisted, got (%v, %q)", value, date)
	}
}

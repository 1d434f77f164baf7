package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerWritesToBothSinks(t *testing.T) {
	var console, file bytes.Buffer
	log := newLogger(&console, &file)

	log.Info().Str("link", "blob:x").Msg("Recording finalized")

	if console.Len() == 0 || file.Len() == 0 {
		t.Fatalf("expected output on both sinks, console=%d file=%d", console.Len(), file.Len())
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if entry["message"] != "Recording finalized" || entry["link"] != "blob:x" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewLoggerWithoutFile(t *testing.T) {
	var console bytes.Buffer
	log := newLogger(&console, nil)
	log.Warn().Msg("console only")
	if console.Len() == 0 {
		t.Fatal("expected console output")
	}
}

func TestNewWithLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("LOCALAPPDATA", dir)

	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := NewWithLevel(in).GetLevel(); got != want {
			t.Errorf("NewWithLevel(%q) level = %s, want %s", in, got, want)
		}
	}

	if _, err := os.Stat(filepath.Dir(LogPath())); err != nil {
		t.Errorf("expected log directory to exist: %v", err)
	}
}

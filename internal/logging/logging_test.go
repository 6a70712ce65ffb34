package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Console: &buf})
	log.Debug("hidden detail")
	log.Warn("skip unreadable note")
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden detail") {
		t.Errorf("debug record printed without verbose: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "skip unreadable note") {
		t.Errorf("expected warn record, got %q", out)
	}
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Console: &buf, Verbose: true})
	log.Debug("probe version")
	_ = log.Sync()

	if !strings.Contains(buf.String(), "probe version") {
		t.Errorf("expected debug record in verbose mode, got %q", buf.String())
	}
}

func TestNew_FileCore(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "noter.log")
	log := New(Options{Console: &buf, File: path})
	log.Info("wrote merged note")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log file is not JSON lines: %v (%q)", err, data)
	}
	if rec["message"] != "wrote merged note" || rec["level"] != "INFO" {
		t.Errorf("unexpected record: %v", rec)
	}
	if buf.Len() != 0 {
		t.Errorf("info record should not reach the console: %q", buf.String())
	}
}

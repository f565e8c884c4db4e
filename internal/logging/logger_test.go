package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newscastd/internal/logging"
)

func TestJSONFormatWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "newscastd.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	component := logging.NewComponentLogger(logger, "pipeline")
	component.Info("tick completed",
		logging.String(logging.FieldRunID, "run-1"),
		logging.Int("duration_ms", 42),
	)
	component.Debug("suppressed at info level")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug suppressed)", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "tick completed" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["component"] != "pipeline" || entry["run_id"] != "run-1" {
		t.Fatalf("attrs = %v", entry)
	}
}

func TestConsoleFormatPrefixesComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logging.NewComponentLogger(logger, "finalize").Warn("track failed validation",
		logging.Int(logging.FieldTopicIndex, 7),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "WARN finalize: track failed validation") {
		t.Fatalf("line = %q", line)
	}
	if !strings.Contains(line, "topic=7") {
		t.Fatalf("line = %q", line)
	}
}

func TestUnsupportedFormatIsRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("unsupported format should be rejected")
	}
}

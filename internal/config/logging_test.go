package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("crawl finished", "pages", 3)
	logger.Debug("suppressed")

	if !strings.Contains(stderr.String(), "crawl finished") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "suppressed") {
		t.Error("debug line should be filtered at info level")
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v\n%s", err, file.String())
	}
	if entry["msg"] != "crawl finished" {
		t.Errorf("file entry msg = %v", entry["msg"])
	}
	if entry["pages"] != float64(3) {
		t.Errorf("file entry pages = %v", entry["pages"])
	}
}

func TestSetupLogger_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optiview.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("scan completed", "scan_id", "abc123")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"msg":"scan completed"`)) {
		t.Errorf("log file missing entry: %s", data)
	}
}

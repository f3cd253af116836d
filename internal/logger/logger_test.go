package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithOutputWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("sat-daily-quiz", "debug", &buf)
	log.WithField("date", "2024-03-15").Debug("daily quiz built")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["message"] != "daily quiz built" || line["service"] != "sat-daily-quiz" || line["date"] != "2024-03-15" {
		t.Fatalf("unexpected log line %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp field missing: %v", line)
	}
}

func TestLevelFallback(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	log := NewWithOutput("svc", "", &buf)
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
	log.Warn("shown")
	if buf.Len() == 0 {
		t.Fatalf("warn should be logged")
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	origOut := log.Writer()
	origFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(origOut)
		log.SetFlags(origFlags)
	})
	return &buf
}

func TestInfoTextFormat(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false

	buf := captureLog(t)
	Info("relay", "hello", "key", "val")
	got := strings.TrimSpace(buf.String())
	if !strings.Contains(got, "[RELAY] hello") || !strings.Contains(got, "key=val") {
		t.Fatalf("unexpected log output: %s", got)
	}
}

func TestWarnAndErrorPrefix(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false

	buf := captureLog(t)
	Warn("relay", "careful")
	Error("relay", "broken", "error", "boom")
	got := buf.String()
	if !strings.Contains(got, "[RELAY] WARN careful") {
		t.Fatalf("missing warn prefix: %s", got)
	}
	if !strings.Contains(got, "[RELAY] ERROR broken") || !strings.Contains(got, "error=boom") {
		t.Fatalf("missing error line: %s", got)
	}
}

func TestErrorJSONFormat(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false
	t.Setenv(envLogFormat, "json")

	buf := captureLog(t)
	Error("relay", "broken", "cause", "timeout")
	var entry map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "error" || entry["component"] != "relay" || entry["cause"] != "timeout" {
		t.Fatalf("unexpected JSON entry: %v", entry)
	}
}

func TestOddFieldCount(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false

	buf := captureLog(t)
	Info("relay", "odd", "orphan")
	if !strings.Contains(buf.String(), "orphan=(missing)") {
		t.Fatalf("odd field not padded: %s", buf.String())
	}
}

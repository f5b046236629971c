package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{
		zl:        zerolog.New(buf).Level(zerolog.DebugLevel),
		component: "test",
	}
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	return entry
}

func TestLogKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Info("user registered", "email", "trader@example.com", "attempts", 3)

	entry := lastEntry(t, &buf)
	if entry["message"] != "user registered" {
		t.Errorf("message = %v, want user registered", entry["message"])
	}
	if entry["email"] != "trader@example.com" {
		t.Errorf("email = %v, want trader@example.com", entry["email"])
	}
	if entry["component"] != "test" {
		t.Errorf("component = %v, want test", entry["component"])
	}
}

func TestLogErrorValuesSerializeAsStrings(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Warn("request failed", "error", errors.New("boom"))

	entry := lastEntry(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestLogMessageNotTreatedAsFormatString(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	// A stray % verb with non-pair args must pass through verbatim
	logger.Info("progress at 50%s complete", 42)

	entry := lastEntry(t, &buf)
	if entry["message"] != "progress at 50%s complete" {
		t.Errorf("message = %v, want the literal text", entry["message"])
	}
	args, ok := entry["args"].([]interface{})
	if !ok || len(args) != 1 {
		t.Fatalf("args = %v, want one trailing value", entry["args"])
	}
	if args[0] != float64(42) {
		t.Errorf("args[0] = %v, want 42", args[0])
	}
}

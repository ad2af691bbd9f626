package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFieldsAreStructured(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With(String("component", "table_builder"))
	l.Warn("cell missing",
		String("cell", "1M x 2Y"),
		Date("date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Int("rows", 20),
		Float64("z", 1.5),
		Error(errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	checks := map[string]interface{}{
		"level":     "warn",
		"message":   "cell missing",
		"component": "table_builder",
		"cell":      "1M x 2Y",
		"date":      "2024-03-01",
		"rows":      float64(20),
		"z":         1.5,
		"error":     "boom",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Fatalf("%s=%v want %v", k, entry[k], want)
		}
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug entry written at info level: %s", buf.String())
	}
	Nop().Error("discarded")
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error")
	}
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func jsonLogger(level string, buf *bytes.Buffer) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "test-svc", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.Zerolog().GetLevel().String() != "debug" {
		t.Errorf("expected debug level, got %s", l.Zerolog().GetLevel())
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger("info", &buf).Info("store opened", Fields(FieldStore, "users", FieldCount, 3))

	m := decodeLine(t, &buf)
	if m["message"] != "store opened" {
		t.Errorf("unexpected message: %v", m["message"])
	}
	if m["service"] != "test-svc" {
		t.Errorf("expected service field, got %v", m["service"])
	}
	if m[FieldStore] != "users" {
		t.Errorf("expected store field, got %v", m[FieldStore])
	}
	if m[FieldCount] != float64(3) {
		t.Errorf("expected count 3, got %v", m[FieldCount])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger("warn", &buf)
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger("loud", &buf)
	l.Debug("hidden")
	l.Info("visible")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected info level fallback, got %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cl := jsonLogger("info", &buf).WithComponent("store.memory")
	if cl.service != "test-svc" {
		t.Errorf("service should be preserved, got %q", cl.service)
	}
	cl.Info("x")
	if m := decodeLine(t, &buf); m[FieldComponent] != "store.memory" {
		t.Errorf("expected component field, got %v", m[FieldComponent])
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithRequestID(ctx, "req-1")

	jsonLogger("info", &buf).WithContext(ctx).Info("scan")

	m := decodeLine(t, &buf)
	if m[FieldTraceID] != traceID.String() {
		t.Errorf("expected trace id, got %v", m[FieldTraceID])
	}
	if m[FieldSpanID] != spanID.String() {
		t.Errorf("expected span id, got %v", m[FieldSpanID])
	}
	if m[FieldRequestID] != "req-1" {
		t.Errorf("expected request id, got %v", m[FieldRequestID])
	}
}

func TestWithContext_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger("info", &buf).WithContext(context.Background()).Info("plain")
	m := decodeLine(t, &buf)
	if _, ok := m[FieldTraceID]; ok {
		t.Error("expected no trace id without a span")
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger("info", &buf).
		WithFields(map[string]interface{}{FieldDriver: "badger"}).
		WithError(errors.New("disk full")).
		Error("submit failed")

	m := decodeLine(t, &buf)
	if m[FieldDriver] != "badger" {
		t.Errorf("expected driver field, got %v", m[FieldDriver])
	}
	if m[FieldError] != "disk full" {
		t.Errorf("expected error field, got %v", m[FieldError])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "svc", &buf)
	l.Warn("careful")
	out := buf.String()
	if !strings.Contains(out, "[WRN]") || !strings.Contains(out, "careful") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	l.WithComponent("x").Error("discarded")
}

func TestFields(t *testing.T) {
	f := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if len(f) != 2 || f["a"] != 1 || f["b"] != "two" {
		t.Errorf("unexpected fields %v", f)
	}

	ef := ErrorFields("submit", errors.New("boom"))
	if ef[FieldOperation] != "submit" || ef[FieldError] != "boom" {
		t.Errorf("unexpected error fields %v", ef)
	}

	sf := StoreFields("scan", "users")
	if sf[FieldStore] != "users" || sf[FieldOperation] != "scan" {
		t.Errorf("unexpected store fields %v", sf)
	}

	tf := DurationFields("open", 2*time.Second)
	if tf[FieldDuration] != int64(2000) || tf[FieldOperation] != "open" {
		t.Errorf("unexpected duration fields %v", tf)
	}

	df := MergeWithDuration(nil, 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", df[FieldDuration])
	}
}

func TestConfig(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" || !cfg.Timestamp {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	bad := &Config{Level: "chatty", Format: "json"}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid level error")
	}
	bad = &Config{Level: "info", Format: "xml"}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid format error")
	}
}

func TestRegistry(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	named := jsonLogger("info", &buf)
	Register("store", named)
	if Get("store") != named {
		t.Error("expected registered logger")
	}

	fallback := Get("unknown")
	if fallback == nil || fallback == named {
		t.Error("expected a component logger for unknown names")
	}

	RegisterDefaults("httpapi")
	if Get("httpapi") == nil {
		t.Error("expected default registration")
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := globalLogger
	defer SetGlobalLogger(prev)

	var buf bytes.Buffer
	SetGlobalLogger(jsonLogger("debug", &buf))
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	WithContext(context.Background()).Info("ctx")

	if lines := strings.Count(buf.String(), "\n"); lines != 5 {
		t.Errorf("expected 5 lines, got %d: %q", lines, buf.String())
	}
}

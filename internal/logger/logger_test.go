package logger

import (
	"errors"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
	}{
		{name: "development mode", debug: true},
		{name: "production mode", debug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.debug)
			if err != nil {
				t.Fatalf("NewLogger() error = %v, want nil", err)
			}
			if log == nil {
				t.Fatal("NewLogger() returned nil logger")
			}

			log.Info("test message")

			// Sync errors are acceptable in test environments
			_ = log.Sync()
		})
	}
}

func TestNewNopLogger(t *testing.T) {
	log := NewNopLogger()
	if log == nil {
		t.Fatal("NewNopLogger() returned nil")
	}

	// Nop logger should not panic on any operation
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	withLogger := log.With(String("key", "value"))
	if withLogger == nil {
		t.Fatal("With() returned nil")
	}

	_ = log.Sync()
}

func TestLoggerStructuredFields(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer log.Sync()

	log.Debug("test fields",
		String("string_field", "value"),
		Int("int_field", 42),
		Int64("int64_field", 9223372036854775807),
		Float64("float_field", 3.14),
		Bool("bool_field", true),
		Duration("duration_field", time.Second),
		Time("time_field", time.Now()),
		Error(errors.New("test error")),
		NamedError("custom_error", errors.New("custom")),
		Any("any_field", map[string]any{"key": "value"}),
		Strings("strings_field", []string{"a", "b", "c"}),
	)
}

func TestLoggerWith(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer log.Sync()

	contextLogger := log.With(
		String("service", "archivesync"),
		String("version", "1.0.0"),
	)
	if contextLogger == nil {
		t.Fatal("With() returned nil")
	}
	contextLogger.Info("message with context")

	chainedLogger := contextLogger.With(String("request_id", "12345"))
	if chainedLogger == nil {
		t.Fatal("chained With() returned nil")
	}
	chainedLogger.Info("message with chained context")

	// Original logger should not have context
	log.Info("message without context")
}

func TestLoggerConcurrent(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer log.Sync()

	done := make(chan bool, 10)
	for i := range 10 {
		go func(id int) {
			log.Info("concurrent message", Int("goroutine_id", id))
			done <- true
		}(i)
	}

	for range 10 {
		<-done
	}
}

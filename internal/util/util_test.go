package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, nil, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, nil, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("constraint failed")
	attempts := 0

	err := Retry(context.Background(), 5, 0, func(err error) bool {
		return !errors.Is(err, permanent)
	}, func() error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("Retry error = %v, want %v", err, permanent)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, nil, func() error {
		return errors.New("transient error")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestTradingCalendarIntersection(t *testing.T) {
	cal := NewTradingCalendar(
		[]string{"2024-01-03", "2024-01-01", "2024-01-02"},
		[]string{"2024-01-02", "2024-01-03", "2024-01-04"},
	)
	got := cal.Days()
	want := []string{"2024-01-02", "2024-01-03"}
	if len(got) != len(want) {
		t.Fatalf("Days() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Days()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if cal.First() != "2024-01-02" || cal.Last() != "2024-01-03" {
		t.Errorf("First/Last = %q/%q", cal.First(), cal.Last())
	}
}

func TestTradingCalendarDisjoint(t *testing.T) {
	cal := NewTradingCalendar([]string{"2024-01-01"}, []string{"2024-01-02"})
	if !cal.Empty() || cal.Len() != 0 {
		t.Errorf("disjoint calendar has %d days, want 0", cal.Len())
	}
	if cal.First() != "" {
		t.Errorf("First() = %q, want empty", cal.First())
	}
	if !NewTradingCalendar().Empty() {
		t.Error("calendar with no date sets is not empty")
	}
}

func TestTradingCalendarDuplicateDates(t *testing.T) {
	cal := NewTradingCalendar([]string{"2024-01-01", "2024-01-01"}, []string{"2024-01-02"})
	if !cal.Empty() {
		t.Errorf("Days() = %v, want empty", cal.Days())
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", "json").Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}

	newLogger(&buf, "debug", "json").Debug("shown", "k", 1)
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "info", "text").Info("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOrderedSetNoDuplicates(t *testing.T) {
	s := NewOrderedSet()

	if !s.Add("airbnb.com/rooms/1") {
		t.Error("first Add should return true")
	}
	if s.Add("airbnb.com/rooms/1") {
		t.Error("second Add of same value should return false")
	}
	s.Add("airbnb.com/rooms/2")

	if got := s.Values(); len(got) != 2 || got[1] != "airbnb.com/rooms/2" {
		t.Errorf("values: got %v, want rooms/1 and rooms/2", got)
	}
}

func TestOrderedSetPreservesFirstSeenOrder(t *testing.T) {
	s := NewOrderedSet()
	for _, v := range []string{"c", "a", "c", "b", "a"} {
		s.Add(v)
	}

	got := s.Values()
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("values: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}

	calls := 0
	err := r.Do(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryWrapsLastError(t *testing.T) {
	sentinel := errors.New("still down")
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}

	err := r.Do(context.Background(), "down", func(context.Context) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: NewDiscardLogger()}
	calls := 0
	err := r.Do(ctx, "cancelled", func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	sentinel := errors.New("not found")
	r := &RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}

	calls := 0
	err := r.Do(context.Background(), "lookup", func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryCapsDelay(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 4, BaseDelay: 20 * time.Millisecond, MaxDelay: 20 * time.Millisecond}

	start := time.Now()
	_ = r.Do(context.Background(), "capped", func(context.Context) error { return errors.New("fail") })
	// Uncapped this would wait 20+40+80ms.
	if elapsed := time.Since(start); elapsed >= 130*time.Millisecond {
		t.Errorf("delay not capped: took %v", elapsed)
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		opts      LogOptions
		wantDebug bool
		wantInfo  bool
	}{
		{"default", LogOptions{}, false, true},
		{"debug", LogOptions{Debug: true}, true, true},
		{"quiet", LogOptions{Quiet: true}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			tc.opts.Output = &buf
			l := NewLoggerWithOptions(tc.opts)
			l.Debug("[test] debug %d", 1)
			l.Info("[test] info %d", 2)
			l.Error("[test] error %d", 3)

			out := buf.String()
			if got := strings.Contains(out, "debug 1"); got != tc.wantDebug {
				t.Errorf("debug shown: got %v, want %v", got, tc.wantDebug)
			}
			if got := strings.Contains(out, "info 2"); got != tc.wantInfo {
				t.Errorf("info shown: got %v, want %v", got, tc.wantInfo)
			}
			if !strings.Contains(out, "error 3") {
				t.Errorf("errors must always be shown: %q", out)
			}
		})
	}
}

func TestLoggerJSONWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LogOptions{JSON: true, Output: &buf}).With("session_id", "s1")
	l.Warn("[cleaner] dropped %d", 4)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "[cleaner] dropped 4" {
		t.Errorf("msg: got %v", rec["msg"])
	}
	if rec["level"] != "WARN" {
		t.Errorf("level: got %v", rec["level"])
	}
	if rec["session_id"] != "s1" {
		t.Errorf("session_id: got %v", rec["session_id"])
	}
}

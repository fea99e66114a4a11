package observe

import (
	"context"
	"fmt"
	"sync"

	"property-finder/utils"
)

// LogSink writes steps at debug level and signals at info or warn.
type LogSink struct {
	logger *utils.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *utils.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) RecordStep(_ context.Context, st Step) error {
	s.logger.Debug("[observe] %s | %s -> %s | %s", st.Event, st.Input, st.Output, FormatProps(st.Properties))
	return nil
}

func (s *LogSink) RecordSignal(_ context.Context, sig Signal) error {
	if sig.Sentiment == Negative {
		s.logger.Warn("[observe] signal %s %s", sig.Name, FormatProps(sig.Properties))
		return nil
	}
	s.logger.Info("[observe] signal %s %s", sig.Name, FormatProps(sig.Properties))
	return nil
}

// MemorySink keeps everything in memory. Handy for tests and for callers that
// want to inspect a run after the fact.
type MemorySink struct {
	mu      sync.Mutex
	steps   []Step
	signals []Signal
}

func (s *MemorySink) RecordStep(_ context.Context, st Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, st)
	return nil
}

func (s *MemorySink) RecordSignal(_ context.Context, sig Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

// Steps returns a copy of the recorded steps.
func (s *MemorySink) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.steps...)
}

// Signals returns a copy of the recorded signals.
func (s *MemorySink) Signals() []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Signal(nil), s.signals...)
}

// Events returns the recorded step event names in order.
func (s *MemorySink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.steps))
	for _, st := range s.steps {
		out = append(out, st.Event)
	}
	return out
}

// SignalNames returns the recorded signal names in order.
func (s *MemorySink) SignalNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.signals))
	for _, sig := range s.signals {
		out = append(out, sig.Name)
	}
	return out
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Package observe records discrete pipeline steps and the signals attached
// to them. Delivery is best effort: a failing sink is logged and ignored.
package observe

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"property-finder/utils"
)

// Sentiment tags a signal as good or bad news.
type Sentiment string

const (
	Positive Sentiment = "POSITIVE"
	Negative Sentiment = "NEGATIVE"
)

// Step is one tracked event with a short input/output summary.
type Step struct {
	ID         string
	SessionID  string
	Event      string
	Input      string
	Output     string
	Properties map[string]any
	At         time.Time
}

// Signal is a severity-tagged annotation attached to a prior step.
type Signal struct {
	ID         string
	StepID     string
	SessionID  string
	Name       string
	Sentiment  Sentiment
	Properties map[string]any
	At         time.Time
}

// Sink receives steps and signals.
type Sink interface {
	RecordStep(ctx context.Context, s Step) error
	RecordSignal(ctx context.Context, s Signal) error
}

// Tracker stamps steps and signals with the run's session id and fans them
// out to its sinks. A nil *Tracker is valid and records nothing.
type Tracker struct {
	sessionID string
	sinks     []Sink
	logger    *utils.Logger
	now       func() time.Time
}

// NewTracker creates a Tracker for one session.
func NewTracker(sessionID string, logger *utils.Logger, sinks ...Sink) *Tracker {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Tracker{
		sessionID: sessionID,
		sinks:     sinks,
		logger:    logger,
		now:       time.Now,
	}
}

// SessionID returns the session the tracker stamps records with.
func (t *Tracker) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

// Track records a finished step and returns its id.
func (t *Tracker) Track(ctx context.Context, event, input, output string, props map[string]any) string {
	if t == nil {
		return ""
	}
	step := Step{
		ID:         uuid.NewString(),
		SessionID:  t.sessionID,
		Event:      event,
		Input:      input,
		Output:     output,
		Properties: t.withSession(props),
		At:         t.now(),
	}
	t.emitStep(ctx, step)
	return step.ID
}

// Begin opens an interaction whose step is recorded on Finish. Signals can
// reference its ID before then.
func (t *Tracker) Begin(ctx context.Context, event, input string, props map[string]any) *Interaction {
	in := &Interaction{tracker: t}
	if t == nil {
		return in
	}
	in.step = Step{
		ID:         uuid.NewString(),
		SessionID:  t.sessionID,
		Event:      event,
		Input:      input,
		Properties: t.withSession(props),
		At:         t.now(),
	}
	return in
}

// Signal attaches a named signal to a step.
func (t *Tracker) Signal(ctx context.Context, stepID, name string, sentiment Sentiment, props map[string]any) {
	if t == nil {
		return
	}
	sig := Signal{
		ID:         uuid.NewString(),
		StepID:     stepID,
		SessionID:  t.sessionID,
		Name:       name,
		Sentiment:  sentiment,
		Properties: copyProps(props),
		At:         t.now(),
	}
	for _, s := range t.sinks {
		if err := s.RecordSignal(ctx, sig); err != nil {
			t.logger.Debug("[observe] signal %s not delivered: %v", name, err)
		}
	}
}

func (t *Tracker) emitStep(ctx context.Context, step Step) {
	for _, s := range t.sinks {
		if err := s.RecordStep(ctx, step); err != nil {
			t.logger.Debug("[observe] step %s not delivered: %v", step.Event, err)
		}
	}
}

func (t *Tracker) withSession(props map[string]any) map[string]any {
	out := copyProps(props)
	out["session_id"] = t.sessionID
	return out
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	return out
}

// Interaction is a step that is still in progress.
type Interaction struct {
	tracker  *Tracker
	step     Step
	mu       sync.Mutex
	finished bool
}

// ID returns the id the step will be recorded under.
func (i *Interaction) ID() string {
	return i.step.ID
}

// SetProperties merges props into the pending step.
func (i *Interaction) SetProperties(props map[string]any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.step.Properties == nil {
		i.step.Properties = map[string]any{}
	}
	for k, v := range props {
		i.step.Properties[k] = v
	}
}

// Finish records the step with its output. Only the first call counts.
func (i *Interaction) Finish(ctx context.Context, output string, props map[string]any) {
	if i.tracker == nil {
		return
	}
	i.SetProperties(props)

	i.mu.Lock()
	if i.finished {
		i.mu.Unlock()
		return
	}
	i.finished = true
	step := i.step
	step.Output = output
	i.mu.Unlock()

	i.tracker.emitStep(ctx, step)
}

// FormatProps renders properties as sorted key=value pairs.
func FormatProps(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(toString(props[k]))
	}
	return b.String()
}

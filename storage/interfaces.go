// Package storage persists run results and observability events.
package storage

import (
	"context"
	"errors"
	"time"

	"property-finder/models"
	"property-finder/observe"
)

// ErrUnsupportedDriver is returned for a SQL driver name the store cannot use.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// ErrRunNotFound is returned when a session has no stored run.
var ErrRunNotFound = errors.New("run not found")

// ResultWriter persists the result document of one run.
type ResultWriter interface {
	Write(ctx context.Context, doc *models.ResultDocument) error
}

// EventRecord is a stored step or signal, flattened for querying.
type EventRecord struct {
	ID         string
	StepID     string
	SessionID  string
	Event      string
	Input      string
	Output     string
	Signal     string
	Sentiment  observe.Sentiment
	Properties map[string]any
	At         time.Time
}

// EventSource reads back stored events for history queries.
type EventSource interface {
	RecentSteps(ctx context.Context, limit int) ([]EventRecord, error)
	RecentSignals(ctx context.Context, sentiment observe.Sentiment, limit int) ([]EventRecord, error)
}

// RunStore is a durable store for results and events.
type RunStore interface {
	ResultWriter
	observe.Sink
	EventSource
	LoadRun(ctx context.Context, sessionID string) (*models.ResultDocument, error)
	Close() error
}

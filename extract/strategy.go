// Package extract turns page markup into raw listing candidates. Each
// Strategy is one self-contained technique; the Cascade runs them in
// priority order and keeps the first non-empty result.
package extract

import (
	"context"

	"property-finder/models"
)

// Status is the outcome class of one strategy attempt.
type Status int

const (
	StatusEmpty Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failure"
	default:
		return "empty"
	}
}

// Outcome is what a strategy reports back to the cascade.
type Outcome struct {
	Status     Status
	Candidates []models.RawCandidate
	Err        error
	// Detail carries strategy-specific counters for observability.
	Detail map[string]any
}

// Succeeded builds a success outcome, or an empty one when candidates is empty.
func Succeeded(candidates []models.RawCandidate, detail map[string]any) Outcome {
	if len(candidates) == 0 {
		return Outcome{Status: StatusEmpty, Detail: detail}
	}
	return Outcome{Status: StatusSuccess, Candidates: candidates, Detail: detail}
}

// Failed builds a failure outcome.
func Failed(err error, detail map[string]any) Outcome {
	return Outcome{Status: StatusFailed, Err: err, Detail: detail}
}

// Request is the input shared by all strategies.
type Request struct {
	Markup string
	Intent string
}

// Strategy turns markup into candidates. Implementations report problems
// through the Outcome and never panic or return errors to the caller.
type Strategy interface {
	Name() models.Strategy
	Extract(ctx context.Context, req Request) Outcome
}

// Conditional is implemented by strategies that only apply to some requests.
type Conditional interface {
	Applies(req Request) bool
}

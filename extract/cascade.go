package extract

import (
	"context"
	"fmt"
	"time"

	"property-finder/models"
	"property-finder/observe"
	"property-finder/utils"
)

// Cascade runs strategies in priority order and keeps the first success.
type Cascade struct {
	strategies []Strategy
	tracker    *observe.Tracker
	logger     *utils.Logger
}

// NewCascade creates a cascade over strategies in the given order. tracker
// may be nil.
func NewCascade(tracker *observe.Tracker, logger *utils.Logger, strategies ...Strategy) *Cascade {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Cascade{strategies: strategies, tracker: tracker, logger: logger}
}

// DefaultCascade builds the standard order: model (when completer-backed),
// structured data, regex.
func DefaultCascade(tracker *observe.Tracker, logger *utils.Logger, model *ModelBased) *Cascade {
	var strategies []Strategy
	if model != nil {
		strategies = append(strategies, model)
	}
	strategies = append(strategies, NewStructuredData(), DefaultRegexHeuristic())
	return NewCascade(tracker, logger, strategies...)
}

// WithTracker returns a copy of the cascade that reports to tracker.
func (c *Cascade) WithTracker(tracker *observe.Tracker) *Cascade {
	cp := *c
	cp.tracker = tracker
	return &cp
}

// Extract returns the candidates of the first strategy that found any,
// together with that strategy's name. When every strategy comes up empty it
// returns StrategyNone and no candidates.
func (c *Cascade) Extract(ctx context.Context, markup, intent string) (models.Strategy, []models.RawCandidate) {
	req := Request{Markup: markup, Intent: intent}

	for _, s := range c.strategies {
		if cond, ok := s.(Conditional); ok && !cond.Applies(req) {
			continue
		}
		if ctx.Err() != nil {
			c.logger.Warn("[extract] stopping cascade: %v", ctx.Err())
			break
		}

		start := time.Now()
		out := s.Extract(ctx, req)
		elapsed := time.Since(start)

		props := map[string]any{
			"strategy":    string(s.Name()),
			"duration_ms": elapsed.Milliseconds(),
		}
		for k, v := range out.Detail {
			props[k] = v
		}

		switch out.Status {
		case StatusSuccess:
			c.tracker.Track(ctx, "strategy_success", string(s.Name()), summary(len(out.Candidates)), props)
			c.logger.Info("[extract] %s found %d candidates in %v", s.Name(), len(out.Candidates), elapsed)
			return s.Name(), out.Candidates
		case StatusFailed:
			props["error"] = out.Err.Error()
			stepID := c.tracker.Track(ctx, "strategy_failure", string(s.Name()), out.Err.Error(), props)
			c.tracker.Signal(ctx, stepID, "strategy_failure", observe.Negative, map[string]any{
				"strategy": string(s.Name()),
				"error":    out.Err.Error(),
			})
			c.logger.Warn("[extract] %s failed: %v", s.Name(), out.Err)
		default:
			c.tracker.Track(ctx, "strategy_empty", string(s.Name()), summary(0), props)
			c.logger.Debug("[extract] %s found nothing", s.Name())
		}
	}

	return models.StrategyNone, nil
}

func summary(n int) string {
	return fmt.Sprintf("%d candidates", n)
}

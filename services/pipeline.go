package services

import (
	"context"

	"property-finder/extract"
	"property-finder/models"
	"property-finder/observe"
	"property-finder/utils"
)

// Pipeline turns markup into ranked listings: extract, clean, score.
type Pipeline struct {
	cascade *extract.Cascade
	cleaner *Cleaner
	scorer  *Scorer
	logger  *utils.Logger
}

// PipelineResult is the output of one pipeline run.
type PipelineResult struct {
	Strategy   models.Strategy
	Candidates int
	Keywords   []string
	Listings   []models.ScoredListing
}

// NewPipeline creates a Pipeline from its stages.
func NewPipeline(cascade *extract.Cascade, cleaner *Cleaner, scorer *Scorer, logger *utils.Logger) *Pipeline {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Pipeline{cascade: cascade, cleaner: cleaner, scorer: scorer, logger: logger}
}

// WithTracker returns a copy of the pipeline whose stages report to tracker.
func (p *Pipeline) WithTracker(tracker *observe.Tracker) *Pipeline {
	cp := *p
	cp.cascade = p.cascade.WithTracker(tracker)
	cp.scorer = p.scorer.WithTracker(tracker)
	return &cp
}

// WithScorer returns a copy of the pipeline that scores with s.
func (p *Pipeline) WithScorer(s *Scorer) *Pipeline {
	cp := *p
	cp.scorer = s
	return &cp
}

// Scorer returns the pipeline's scorer.
func (p *Pipeline) Scorer() *Scorer {
	return p.scorer
}

// Run extracts, validates and ranks the listings in markup. Extraction
// problems never fail the run; an empty result is a valid outcome.
func (p *Pipeline) Run(ctx context.Context, markup, intent string, keywords []string) *PipelineResult {
	strategy, candidates := p.cascade.Extract(ctx, markup, intent)
	listings := p.cleaner.Clean(candidates)
	ranked := p.scorer.Rank(ctx, listings, keywords)

	p.logger.Info("[pipeline] %s: %d candidates → %d ranked listings",
		strategy, len(candidates), len(ranked))

	return &PipelineResult{
		Strategy:   strategy,
		Candidates: len(candidates),
		Keywords:   keywords,
		Listings:   ranked,
	}
}

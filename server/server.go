// Package server exposes the ranking pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"property-finder/models"
	"property-finder/observe"
	"property-finder/services"
	"property-finder/utils"
)

// RankRequest is the body of POST /api/v1/rank.
type RankRequest struct {
	Markup   string   `json:"markup" binding:"required"`
	Intent   string   `json:"intent"`
	Keywords []string `json:"keywords"`
	Profile  string   `json:"profile"`
}

// RankResponse is the ranked result of one request.
type RankResponse struct {
	SessionID  string                 `json:"session_id"`
	Total      int                    `json:"total"`
	Keywords   []string               `json:"keywords"`
	Strategy   models.Strategy        `json:"strategy"`
	Candidates int                    `json:"candidates"`
	Results    []models.ScoredListing `json:"results"`
}

// ScorerFactory builds a scorer for a profile named in a request. Names
// come from remote callers, so implementations should only resolve
// built-in profiles.
type ScorerFactory func(profile string) (*services.Scorer, error)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pipeline  *services.Pipeline
	scorerFor ScorerFactory
	sinks     []observe.Sink
	logger    *utils.Logger
}

// NewHandler creates a Handler. scorerFor may be nil, in which case the
// profile field of a request is ignored.
func NewHandler(pipeline *services.Pipeline, scorerFor ScorerFactory, sinks []observe.Sink, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Handler{pipeline: pipeline, scorerFor: scorerFor, sinks: sinks, logger: logger}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "property-finder",
	})
}

// Rank runs the pipeline over the posted markup.
func (h *Handler) Rank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pipeline := h.pipeline
	if req.Profile != "" && h.scorerFor != nil {
		scorer, err := h.scorerFor(req.Profile)
		if err != nil {
			h.logger.Warn("[server] profile %q rejected: %v", req.Profile, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown profile"})
			return
		}
		pipeline = pipeline.WithScorer(scorer)
	}

	ctx := c.Request.Context()
	sessionID := "api_" + uuid.NewString()
	tracker := observe.NewTracker(sessionID, h.logger.With("session_id", sessionID), h.sinks...)
	keywords := services.ResolveKeywords(req.Keywords, req.Intent, "")

	result := pipeline.WithTracker(tracker).Run(ctx, req.Markup, req.Intent, keywords)
	tracker.Track(ctx, "api_rank", req.Intent, string(result.Strategy), map[string]any{
		"markup_length": len(req.Markup),
		"count":         len(result.Listings),
	})

	results := result.Listings
	if results == nil {
		results = []models.ScoredListing{}
	}
	c.JSON(http.StatusOK, RankResponse{
		SessionID:  sessionID,
		Total:      len(results),
		Keywords:   keywords,
		Strategy:   result.Strategy,
		Candidates: result.Candidates,
		Results:    results,
	})
}

// NewRouter builds the gin engine. mode is a gin mode name.
func NewRouter(mode string, h *Handler) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(h.logger))

	router.GET("/healthz", h.Health)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/rank", h.Rank)
	}
	return router
}

func requestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("[server] %s %s %d %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *utils.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("[server] listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	logger.Info("[server] shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

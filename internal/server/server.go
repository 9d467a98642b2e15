package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"equity-analyst/internal/report"
	"equity-analyst/internal/service"
	"equity-analyst/internal/version"
)

// Analyzer is the orchestration surface exposed over HTTP.
type Analyzer interface {
	HandleRequest(ctx context.Context, raw string) (service.Outcome, error)
	Poll(id string) service.Status
}

// Options configure the listener.
type Options struct {
	Addr            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the analysis API.
type Server struct {
	opts     Options
	analyzer Analyzer
	engine   *gin.Engine
	logger   zerolog.Logger
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Ticker string `json:"ticker" binding:"required"`
}

// AnalyzeResponse covers both the cached and the started shapes.
type AnalyzeResponse struct {
	Status string         `json:"status"`
	JobID  string         `json:"job_id,omitempty"`
	Result *report.Report `json:"result,omitempty"`
	Source string         `json:"source,omitempty"`
}

// StatusStarted acknowledges a newly launched job.
const StatusStarted = "started"

// New builds the gin engine and registers routes.
func New(opts Options, analyzer Analyzer, logger zerolog.Logger) *Server {
	switch opts.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		opts:     opts,
		analyzer: analyzer,
		engine:   gin.New(),
		logger:   logger.With().Str("component", "server").Logger(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(s.logger))

	s.engine.GET("/", s.root)
	s.engine.POST("/analyze", s.analyze)
	s.engine.GET("/status/:job_id", s.status)
	return s
}

// Handler exposes the engine for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Equity analysis committee API. POST /analyze with {\"ticker\": \"TCS\"} then poll GET /status/{job_id}.",
		"version": version.Version,
		"commit":  version.Commit,
	})
}

func (s *Server) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a non-empty ticker"})
		return
	}

	outcome, err := s.analyzer.HandleRequest(c.Request.Context(), req.Ticker)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if outcome.Cached() {
		c.JSON(http.StatusOK, AnalyzeResponse{
			Status: service.StatusCompleted,
			Result: outcome.Report,
			Source: outcome.Source,
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{Status: StatusStarted, JobID: outcome.JobID})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.analyzer.Poll(c.Param("job_id")))
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"equity-analyst/internal/alerting"
	"equity-analyst/internal/executor"
	"equity-analyst/internal/fetcher"
	"equity-analyst/internal/jobs"
	"equity-analyst/internal/pipeline"
	"equity-analyst/internal/report"
	"equity-analyst/internal/staleness"
	"equity-analyst/internal/storage"
	"equity-analyst/internal/ticker"
)

// SourceCache tags a report served from the store.
const SourceCache = "cache"

// Poll statuses. not_found is a status, never an error.
const (
	StatusNotFound  = "not_found"
	StatusPending   = string(jobs.StatusPending)
	StatusCompleted = string(jobs.StatusCompleted)
	StatusFailed    = string(jobs.StatusFailed)
)

// Dispatcher hands background work to an executor.
type Dispatcher interface {
	Submit(task executor.Task) error
}

// Deps are the collaborators of the orchestrator. Store, Prices and Notifier may be nil.
type Deps struct {
	Normalizer ticker.Normalizer
	Prices     fetcher.PriceFetcher
	Store      storage.ReportStore
	Policy     staleness.Policy
	Registry   jobs.Registry
	Producer   pipeline.Producer
	Dispatcher Dispatcher
	Notifier   alerting.Notifier
}

// Service decides between cached reports and background analysis.
type Service struct {
	normalizer ticker.Normalizer
	prices     fetcher.PriceFetcher
	store      storage.ReportStore
	policy     staleness.Policy
	registry   jobs.Registry
	producer   pipeline.Producer
	dispatcher Dispatcher
	notifier   alerting.Notifier
	logger     zerolog.Logger
	now        func() time.Time
}

// New constructs the orchestrator.
func New(deps Deps, logger zerolog.Logger) *Service {
	return &Service{
		normalizer: deps.Normalizer,
		prices:     deps.Prices,
		store:      deps.Store,
		policy:     deps.Policy,
		registry:   deps.Registry,
		producer:   deps.Producer,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		now:        time.Now,
	}
}

// Outcome is the synchronous answer to an analysis request: either a cached
// report or the id of a freshly started job.
type Outcome struct {
	Ticker string
	Report *report.Report
	Source string
	JobID  string
}

// Cached reports whether the outcome carries a stored report.
func (o Outcome) Cached() bool { return o.Report != nil }

// Status is the polling view of a job.
type Status struct {
	Status string         `json:"status"`
	Result *report.Report `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Terminal reports whether polling can stop.
func (s Status) Terminal() bool {
	return s.Status != StatusPending
}

// HandleRequest serves a fresh stored report or starts a background job.
// The only error is an invalid ticker.
func (s *Service) HandleRequest(ctx context.Context, raw string) (Outcome, error) {
	symbol, err := s.normalizer.Normalize(raw)
	if err != nil {
		return Outcome{}, fmt.Errorf("invalid ticker: %w", err)
	}
	key := symbol.String()
	logger := s.logger.With().Str("ticker", key).Logger()

	price := fetcher.BestEffort(ctx, s.prices, key, logger)

	if rec, found := s.lookup(ctx, key, logger); found {
		decision := s.policy.Evaluate(rec, price, s.now())
		if decision.Fresh {
			logger.Info().Str("reason", decision.Reason).Msg("serving cached report")
			cached := rec.Report
			return Outcome{Ticker: key, Report: &cached, Source: SourceCache}, nil
		}
		logger.Info().Str("reason", decision.Reason).Msg("stored report is stale")
	}

	id := s.registry.Create(key)
	if err := s.dispatcher.Submit(executor.Task{JobID: id, Ticker: key}); err != nil {
		logger.Error().Err(err).Str("job_id", id).Msg("failed to dispatch job")
		s.registry.Fail(id, fmt.Sprintf("dispatch job: %v", err))
		return Outcome{Ticker: key, JobID: id}, nil
	}

	logger.Info().Str("job_id", id).Msg("analysis job started")
	return Outcome{Ticker: key, JobID: id}, nil
}

func (s *Service) lookup(ctx context.Context, key string, logger zerolog.Logger) (storage.Record, bool) {
	if s.store == nil {
		return storage.Record{}, false
	}
	rec, found, err := s.store.Get(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read stored report; treating as absent")
		return storage.Record{}, false
	}
	return rec, found
}

// Execute runs one job to a terminal state. It never returns an error and
// never lets a panic escape.
func (s *Service) Execute(ctx context.Context, task executor.Task) {
	started := s.now()
	logger := s.logger.With().Str("job_id", task.JobID).Str("ticker", task.Ticker).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("analysis panicked")
			if s.registry.Fail(task.JobID, fmt.Sprintf("internal error: %v", r)) {
				s.notify(ctx, task, jobs.StatusFailed, nil, fmt.Sprint(r), started)
			}
		}
	}()

	rep, err := s.analyse(ctx, task, logger)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		if s.registry.Fail(task.JobID, err.Error()) {
			s.notify(ctx, task, jobs.StatusFailed, nil, err.Error(), started)
		}
		return
	}

	if s.registry.Complete(task.JobID, rep) {
		s.notify(ctx, task, jobs.StatusCompleted, &rep, "", started)
	}
}

func (s *Service) analyse(ctx context.Context, task executor.Task, logger zerolog.Logger) (report.Report, error) {
	if s.producer == nil {
		return report.Report{}, errors.New("no analysis pipeline configured")
	}

	out, err := s.producer.Produce(ctx, task.Ticker)
	if err != nil {
		return report.Report{}, err
	}

	rep := report.Normalize(task.Ticker, out, s.now())
	if rep.Degraded {
		logger.Warn().Msg("committee returned unstructured output; storing degraded report")
	}

	price := fetcher.BestEffort(ctx, s.prices, task.Ticker, logger).OrZero()
	if s.store != nil {
		if err := s.store.Put(ctx, task.Ticker, price, rep); err != nil {
			logger.Error().Err(err).Msg("failed to persist report")
		}
	}
	return rep, nil
}

func (s *Service) notify(ctx context.Context, task executor.Task, status jobs.Status, rep *report.Report, errMsg string, started time.Time) {
	if s.notifier == nil {
		return
	}
	note := alerting.Notification{
		JobID:   task.JobID,
		Ticker:  task.Ticker,
		Status:  string(status),
		Error:   errMsg,
		Elapsed: s.now().Sub(started),
	}
	if rep != nil {
		note.Signal = string(rep.TechnicalSignal)
		note.SentimentScore = rep.SentimentScore
		note.Recommendation = rep.Recommendation
		note.Degraded = rep.Degraded
	}
	// the job context may already be cancelled at shutdown
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := s.notifier.Notify(notifyCtx, note); err != nil {
		s.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to send notification")
	}
}

// Poll reports a job's state. It has no side effects.
func (s *Service) Poll(id string) Status {
	job, ok := s.registry.Get(id)
	if !ok {
		return Status{Status: StatusNotFound}
	}
	switch job.Status {
	case jobs.StatusCompleted:
		return Status{Status: StatusCompleted, Result: job.Result}
	case jobs.StatusFailed:
		return Status{Status: StatusFailed, Error: job.Error}
	default:
		return Status{Status: StatusPending}
	}
}

// WarmResult summarises a watchlist pass.
type WarmResult struct {
	Cached  int
	Started []string
	Invalid int
}

// Warm requests analysis for every ticker; only stale or missing ones start jobs.
func (s *Service) Warm(ctx context.Context, tickers []string) WarmResult {
	var res WarmResult
	for _, raw := range tickers {
		if ctx.Err() != nil {
			break
		}
		outcome, err := s.HandleRequest(ctx, raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", raw).Msg("skipping watchlist entry")
			res.Invalid++
			continue
		}
		if outcome.Cached() {
			res.Cached++
			continue
		}
		res.Started = append(res.Started, outcome.JobID)
	}
	s.logger.Info().
		Int("cached", res.Cached).
		Int("started", len(res.Started)).
		Int("invalid", res.Invalid).
		Msg("watchlist pass complete")
	return res
}

// WarmTick adapts Warm to the scheduler's tick signature.
func (s *Service) WarmTick(tickers []string) func(ctx context.Context, bucket time.Time) error {
	return func(ctx context.Context, bucket time.Time) error {
		res := s.Warm(ctx, tickers)
		if res.Invalid == len(tickers) && len(tickers) > 0 {
			return fmt.Errorf("no valid tickers in watchlist")
		}
		return nil
	}
}

package jobs

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"equity-analyst/internal/report"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one asynchronous analysis run.
type Job struct {
	ID         string
	Ticker     string
	Status     Status
	Result     *report.Report
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Registry records job lifecycles. Implementations must be safe for concurrent use.
type Registry interface {
	Create(ticker string) string
	Complete(id string, r report.Report) bool
	Fail(id string, msg string) bool
	Get(id string) (Job, bool)
}

// MemoryRegistry keeps jobs in process memory. Job state is lost on restart.
type MemoryRegistry struct {
	mu        sync.Mutex
	jobs      *cache.Cache
	retention time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewMemoryRegistry builds a registry. A zero retention keeps jobs forever;
// otherwise finished jobs expire retention after their transition. Pending
// jobs never expire.
func NewMemoryRegistry(retention time.Duration, logger zerolog.Logger) *MemoryRegistry {
	expiry := cache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		expiry = retention
		cleanup = retention
	}
	return &MemoryRegistry{
		jobs:      cache.New(expiry, cleanup),
		retention: expiry,
		now:       time.Now,
		logger:    logger.With().Str("component", "jobs").Logger(),
	}
}

// Create registers a new pending job and returns its fresh identifier.
func (r *MemoryRegistry) Create(ticker string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	for {
		if _, exists := r.jobs.Get(id); !exists {
			break
		}
		id = uuid.NewString()
	}

	r.jobs.Set(id, &Job{
		ID:        id,
		Ticker:    ticker,
		Status:    StatusPending,
		CreatedAt: r.now().UTC(),
	}, cache.NoExpiration)

	r.logger.Debug().Str("job_id", id).Str("ticker", ticker).Msg("job created")
	return id
}

// Complete moves a pending job to completed with its report.
func (r *MemoryRegistry) Complete(id string, rep report.Report) bool {
	return r.finish(id, func(job *Job) {
		job.Status = StatusCompleted
		job.Result = &rep
	})
}

// Fail moves a pending job to failed with a human-readable message.
func (r *MemoryRegistry) Fail(id string, msg string) bool {
	return r.finish(id, func(job *Job) {
		job.Status = StatusFailed
		job.Error = msg
	})
}

func (r *MemoryRegistry) finish(id string, apply func(*Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.jobs.Get(id)
	if !ok {
		r.logger.Warn().Str("job_id", id).Msg("ignoring transition for unknown job")
		return false
	}
	job := value.(*Job)
	if job.Status.Terminal() {
		r.logger.Warn().Str("job_id", id).Str("status", string(job.Status)).Msg("ignoring transition for finished job")
		return false
	}

	apply(job)
	job.FinishedAt = r.now().UTC()
	// retention starts at the terminal transition
	r.jobs.Set(id, job, r.retention)

	r.logger.Info().
		Str("job_id", id).
		Str("ticker", job.Ticker).
		Str("status", string(job.Status)).
		Dur("elapsed", job.FinishedAt.Sub(job.CreatedAt)).
		Msg("job finished")
	return true
}

// Get returns a snapshot of the job.
func (r *MemoryRegistry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.jobs.Get(id)
	if !ok {
		return Job{}, false
	}
	job := *value.(*Job)
	if job.Result != nil {
		result := *job.Result
		result.Catalysts = slices.Clone(result.Catalysts)
		result.Risks = slices.Clone(result.Risks)
		job.Result = &result
	}
	return job, true
}

// Len returns the number of tracked jobs.
func (r *MemoryRegistry) Len() int {
	return r.jobs.ItemCount()
}

var _ Registry = (*MemoryRegistry)(nil)

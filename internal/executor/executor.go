package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStopped is returned when submitting to a pool that is not running.
var ErrStopped = errors.New("executor stopped")

// Task is one unit of background analysis work.
type Task struct {
	JobID  string
	Ticker string
}

// Handler executes a task. It must record its own outcome; the pool ignores results.
type Handler func(ctx context.Context, task Task)

// Options size the pool.
type Options struct {
	Workers   int
	QueueSize int
}

// Pool runs tasks on a fixed set of worker goroutines fed by a buffered queue.
type Pool struct {
	opts    Options
	queue   chan Task
	handler Handler
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an idle pool. Call Start before submitting.
func New(opts Options, logger zerolog.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	return &Pool{
		opts:   opts,
		queue:  make(chan Task, opts.QueueSize),
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Start launches the workers. Cancelling ctx has the same effect as Stop on
// in-flight work: handlers observe a cancelled context.
func (p *Pool) Start(ctx context.Context, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		p.logger.Warn().Msg("executor already started")
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.handler = handler
	p.running = true

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.logger.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("executor started")
}

// Submit enqueues a task without blocking the caller. When the queue is full
// the hand-off continues on a separate goroutine.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- task:
		return nil
	default:
	}

	p.logger.Debug().Str("job_id", task.JobID).Msg("queue full, deferring hand-off")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case p.queue <- task:
		case <-p.ctx.Done():
			p.run(task)
		}
	}()
	return nil
}

// Stop cancels the base context, waits for workers, and flushes queued tasks
// through the handler so each one still reaches a terminal state.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info().Msg("stopping executor")
	p.cancel()
	p.wg.Wait()

	flushed := 0
	for {
		select {
		case task := <-p.queue:
			p.run(task)
			flushed++
		default:
			p.logger.Info().Int("flushed", flushed).Msg("executor stopped")
			return
		}
	}
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int {
	return len(p.queue)
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.queue:
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("job_id", task.JobID).Msg("task handler panicked")
		}
	}()
	p.handler(p.ctx, task)
}

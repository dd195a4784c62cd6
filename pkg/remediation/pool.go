package remediation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrPoolFull is returned by Submit when the backlog has no free slot
	ErrPoolFull = errors.New("worker pool backlog is full")

	// ErrPoolClosed is returned by Submit after Stop
	ErrPoolClosed = errors.New("worker pool is stopped")

	// ErrShutdownTimeout is returned by Stop when tasks outlive the grace period
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
)

// Handler executes one task
type Handler func(ctx context.Context, a types.Appliance)

// PoolConfig sizes the worker pool
type PoolConfig struct {
	// Size is the number of workers
	Size int

	// Backlog is the number of tasks that may wait for a free worker
	Backlog int
}

// Pool runs tasks on a fixed set of workers fed by a bounded channel
type Pool struct {
	config  PoolConfig
	handler Handler
	tasks   chan types.Appliance

	mu      sync.RWMutex
	closed  bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	busy   atomic.Int64
	logger zerolog.Logger
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig, handler Handler) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", cfg.Size)
	}
	if cfg.Backlog < 0 {
		return nil, fmt.Errorf("pool backlog must not be negative, got %d", cfg.Backlog)
	}
	if handler == nil {
		return nil, fmt.Errorf("pool handler is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:  cfg,
		handler: handler,
		tasks:   make(chan types.Appliance, cfg.Backlog),
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.WithComponent("pool"),
	}, nil
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.config.Size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	metrics.RegisterComponent(metrics.ComponentWorkers, true, "")
	p.logger.Info().Int("workers", p.config.Size).Int("backlog", p.config.Backlog).Msg("Worker pool started")
}

// Submit hands a task to the pool without blocking
func (p *Pool) Submit(a types.Appliance) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- a:
		return nil
	default:
		return ErrPoolFull
	}
}

// Busy returns the number of workers currently running a task
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Queued returns the number of tasks waiting for a worker
func (p *Pool) Queued() int {
	return len(p.tasks)
}

// Stop refuses new tasks and waits up to grace for queued and running tasks
// to finish. After grace the workers' context is cancelled and
// ErrShutdownTimeout is returned.
func (p *Pool) Stop(grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		metrics.UpdateComponent(metrics.ComponentWorkers, false, "stopped")
		p.logger.Info().Msg("Worker pool stopped")
		return nil
	case <-timer.C:
		p.cancel()
		metrics.UpdateComponent(metrics.ComponentWorkers, false, "shutdown timed out")
		p.logger.Warn().
			Dur("grace", grace).
			Int("busy", p.Busy()).
			Int("queued", p.Queued()).
			Msg("Worker pool did not drain in time, cancelling tasks")
		return ErrShutdownTimeout
	}
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	for a := range p.tasks {
		p.run(n, a)
	}
}

// run executes one task; a panic is logged and the worker keeps serving
func (p *Pool) run(n int, a types.Appliance) {
	p.busy.Add(1)
	metrics.WorkersBusy.Inc()
	defer func() {
		metrics.WorkersBusy.Dec()
		p.busy.Add(-1)
		if r := recover(); r != nil {
			p.logger.Error().
				Int("worker", n).
				Str("appliance_id", a.ID).
				Interface("panic", r).
				Msg("Task panicked")
		}
	}()

	p.handler(p.ctx, a)
}

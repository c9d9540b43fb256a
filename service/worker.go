package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardpress/metrics"
	"cardpress/models"
	"cardpress/repository"
)

// ErrQueueFull is returned when the worker queue cannot accept more jobs.
var ErrQueueFull = errors.New("print worker queue is full")

// WorkerPool processes queued print jobs on a fixed set of workers.
// "Queued" stays a logical job state; the pool is only the engine that
// picks queued jobs up and drives PrintJobService.Execute, which owns the
// per-job lock and all state-machine semantics.
type WorkerPool struct {
	svc    *PrintJobService
	jobs   repository.PrintJobRepositoryInterface
	queue  chan uuid.UUID
	logger *zap.SugaredLogger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorkerPool creates a pool with the given queue capacity.
func NewWorkerPool(svc *PrintJobService, jobs repository.PrintJobRepositoryInterface, queueSize int, logger *zap.SugaredLogger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &WorkerPool{
		svc:    svc,
		jobs:   jobs,
		queue:  make(chan uuid.UUID, queueSize),
		logger: logger,
	}
}

// Start launches workers and re-enqueues jobs that were already queued
// when the process started (e.g. after a crash or restart).
func (p *WorkerPool) Start(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	pending, err := p.jobs.ListJobIDsByStatus(ctx, models.JobQueued)
	if err != nil {
		return err
	}
	for _, id := range pending {
		select {
		case p.queue <- id:
			metrics.JobsQueued.Inc()
		default:
			p.logger.Warnw("⚠️ queue full while claiming pending jobs, job stays queued", "job_id", id)
		}
	}
	if len(pending) > 0 {
		p.logger.Infow("claimed pending print jobs", "count", len(pending))
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Infow("✓ print workers started", "workers", workers)
	return nil
}

// Enqueue hands a job to the pool without blocking.
func (p *WorkerPool) Enqueue(id uuid.UUID) error {
	select {
	case p.queue <- id:
		metrics.JobsQueued.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for in-flight executions to
// finish their current attempt.
func (p *WorkerPool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context, worker int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-p.queue:
			if !ok {
				return
			}
			metrics.JobsQueued.Dec()
			job, err := p.svc.Execute(ctx, id)
			if err != nil {
				p.logger.Warnw("print job execution failed", "worker", worker, "job_id", id, "error", err)
				continue
			}
			p.logger.Infow("print job processed", "worker", worker, "job_id", id, "status", job.Status)
		}
	}
}

package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"retrying/pkg/logger"
	"retrying/pkg/ratelimit"
	"retrying/pkg/retry"
)

// Job is one unit of work run under the pool's retry policy.
type Job struct {
	ID   int
	Args []string
}

// Result is the outcome of a job after retries.
type Result struct {
	Job      Job
	Err      error
	Attempts uint
	Duration time.Duration
}

// Success reports whether the job eventually succeeded.
func (r Result) Success() bool {
	return r.Err == nil
}

// Operation performs a single attempt of a job.
type Operation func(ctx context.Context, job Job) error

// Pool runs jobs concurrently, each job through its own executor call.
type Pool struct {
	numWorkers  int
	executor    *retry.Executor
	op          Operation
	rateLimiter ratelimit.Limiter
	logger      logger.Logger

	jobQueue    chan Job
	resultQueue chan Result
	group       *errgroup.Group
	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc
	stopOnce    sync.Once
	stopErr     error
}

// NewPool creates a pool of numWorkers workers. A nil limiter means no
// throttling; a nil logger means no logging.
func NewPool(
	numWorkers int,
	executor *retry.Executor,
	op Operation,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited()
	}

	return &Pool{
		numWorkers:  numWorkers,
		executor:    executor,
		op:          op,
		rateLimiter: rateLimiter,
		logger:      logger.Or(log),
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
	}
}

// Start launches the workers. Cancelling ctx abandons queued jobs and
// interrupts waits between attempts.
func (p *Pool) Start(ctx context.Context) {
	p.parent = ctx
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.group, p.ctx = errgroup.WithContext(p.ctx)

	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"policy":      p.executor.Name(),
	})

	for i := 0; i < p.numWorkers; i++ {
		id := i
		p.group.Go(func() error {
			return p.worker(id)
		})
	}
}

// Stop closes the queue, waits for the workers to drain it and closes the
// results channel. It returns the context error if the pool was cancelled.
func (p *Pool) Stop() error {
	p.stopOnce.Do(func() {
		close(p.jobQueue)
		p.stopErr = p.group.Wait()
		if p.stopErr == nil {
			p.stopErr = p.parent.Err()
		}
		close(p.resultQueue)
		p.cancel()
		p.logger.Info("Worker pool stopped")
	})
	return p.stopErr
}

// Submit queues a job, blocking while the queue is full.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"job_id": job.ID,
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the channel of finished jobs. It must be drained while
// jobs are being submitted.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) error {
	for job := range p.jobQueue {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
	return nil
}

func (p *Pool) processJob(job Job, workerID int) Result {
	start := time.Now()
	var attempts uint

	err := p.executor.Run(p.ctx, func() error {
		attempts++
		if err := p.rateLimiter.Wait(p.ctx); err != nil {
			return err
		}
		return p.op(p.ctx, job)
	})

	result := Result{
		Job:      job,
		Err:      err,
		Attempts: attempts,
		Duration: time.Since(start),
	}

	fields := map[string]interface{}{
		"worker_id": workerID,
		"job_id":    job.ID,
		"attempts":  attempts,
		"duration":  result.Duration,
	}
	if err != nil {
		fields["error"] = err.Error()
		p.logger.ErrorWithFields("Job failed", fields)
	} else {
		p.logger.DebugWithFields("Job completed", fields)
	}
	return result
}

// RunAll runs jobs to completion and returns their results ordered by job ID.
// onResult, if not nil, is called from a single goroutine as each job finishes.
func RunAll(ctx context.Context, p *Pool, jobs []Job, onResult func(Result)) ([]Result, error) {
	p.Start(ctx)

	results := make([]Result, 0, len(jobs))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range p.Results() {
			if onResult != nil {
				onResult(r)
			}
			results = append(results, r)
		}
	}()

	var submitErr error
	for _, job := range jobs {
		if err := p.Submit(job); err != nil {
			submitErr = err
			break
		}
	}

	stopErr := p.Stop()
	<-done

	sort.Slice(results, func(i, j int) bool { return results[i].Job.ID < results[j].Job.ID })

	if submitErr != nil {
		return results, submitErr
	}
	return results, stopErr
}

// Package worker runs account sync jobs with bounded concurrency.
// Accounts are independent, so one stuck or failing account never
// blocks the rest of the run.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"metacache/pkg/logger"
)

// Job is one account's worth of sync work.
type Job struct {
	AccountID string
	Platform  string
	Run       func(ctx context.Context) error
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Pool manages concurrent sync workers.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      logger.Logger
}

// NewPool creates a pool. numWorkers below 1 is treated as 1.
func NewPool(ctx context.Context, numWorkers int, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes the
// result channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
}

// Submit queues a job. Fails only when the pool is shutting down.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel job outcomes are delivered on.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		start := time.Now()
		err := job.Run(p.ctx)
		result := Result{Job: job, Err: err, Duration: time.Since(start)}

		if err != nil {
			p.logger.ErrorWithFields("account sync failed", map[string]interface{}{
				"worker_id":  id,
				"account_id": job.AccountID,
				"platform":   job.Platform,
				"error":      err.Error(),
			})
		} else {
			p.logger.DebugWithFields("account sync finished", map[string]interface{}{
				"worker_id":  id,
				"account_id": job.AccountID,
				"duration":   result.Duration.String(),
			})
		}

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

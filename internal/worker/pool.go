// Package worker runs independent units of sampling work in parallel.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Runner computes one unit of work, for example one frame or one row.
// Units must not share mutable state.
type Runner interface {
	Run(ctx context.Context, unit int) error
}

// RunnerFunc adapts an ordinary function to Runner.
type RunnerFunc func(ctx context.Context, unit int) error

// Run calls f(ctx, unit).
func (f RunnerFunc) Run(ctx context.Context, unit int) error { return f(ctx, unit) }

// Task names a single unit to compute.
type Task struct {
	Unit int
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Err     error
	Elapsed time.Duration
}

// PanicError reports a unit whose runner panicked.
type PanicError struct {
	Unit  int
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unit %d panicked: %v", e.Unit, e.Value)
}

// ProgressFunc is called after each task completes. Calls are serialised and
// completed increases by one on each call.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Runner     Runner
	OnProgress ProgressFunc
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	workers    int
	runner     Runner
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		runner:     cfg.Runner,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns one result per task, in completion order.
// It blocks until every task has either run or been skipped because ctx was
// cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// The channel is buffered for every task, so feeding never blocks.
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		var completed, failed int
		for result := range resultCh {
			results = append(results, result)

			completed++
			if result.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(completed, len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		err := p.runSafely(ctx, task.Unit)
		results <- Result{
			Task:    task,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}

func (p *Pool) runSafely(ctx context.Context, unit int) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Unit: unit, Value: v}
		}
	}()
	return p.runner.Run(ctx, unit)
}

// Package workers runs the periodic tasks in background goroutines.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/mewsorg/mews/internal/app/system/tasks"
	"go.uber.org/zap"
)

const defaultJobTimeout = 30 * time.Second

// Runner drives a set of jobs, each on its own ticker.
type Runner struct {
	jobs   []tasks.Job
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a runner for jobs. Nothing runs until Start.
func NewRunner(logger *zap.Logger, jobs ...tasks.Job) *Runner {
	return &Runner{
		jobs:   jobs,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// Start launches one goroutine per job.
func (w *Runner) Start() {
	for _, j := range w.jobs {
		if j.Interval <= 0 || j.Run == nil {
			w.log.Warn("skipping invalid job", zap.String("job", j.Name))
			continue
		}
		w.wg.Add(1)
		go w.run(j)
		w.log.Info("worker started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals every job to stop and waits for in-flight runs to finish.
// It is safe to call more than once.
func (w *Runner) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("workers stopped")
	})
}

func (w *Runner) run(j tasks.Job) {
	defer w.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(j)
		}
	}
}

func (w *Runner) runOnce(j tasks.Job) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := j.Run(ctx); err != nil {
		w.log.Error("job failed", zap.String("job", j.Name), zap.Error(err))
	}
}

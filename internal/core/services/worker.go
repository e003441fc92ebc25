package services

import (
	"context"
	"sync"
	"time"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
)

const (
	defaultDrainTimeout = 30 * time.Second
	dequeueBackoff      = time.Second
)

// Worker pulls queued runs and executes up to capacity of them at once.
type Worker struct {
	runs         *RunService
	capacity     int
	semaphore    chan struct{}  // Limits concurrent runs
	wg           sync.WaitGroup // Tracks running runs for graceful shutdown
	drainTimeout time.Duration

	activeRuns sync.Map // map[string]context.CancelFunc (RunID -> CancelFunc)
}

func NewWorker(runs *RunService, capacity int) *Worker {
	if capacity < 1 {
		capacity = 1
	}
	return &Worker{
		runs:         runs,
		capacity:     capacity,
		semaphore:    make(chan struct{}, capacity),
		drainTimeout: defaultDrainTimeout,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	go w.cancelListener(runCtx)

	logger.Info("Worker started", "capacity", w.capacity)
	for {
		select {
		case w.semaphore <- struct{}{}:
		case <-ctx.Done():
			w.shutdown(cancel)
			return nil
		}

		run, err := w.runs.NextRun(ctx)
		if err != nil {
			<-w.semaphore
			if ctx.Err() != nil {
				w.shutdown(cancel)
				return nil
			}
			logger.Error("Failed to dequeue run", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		if run == nil {
			// Poll timed out
			<-w.semaphore
			continue
		}

		logger.Info("Received run", "run_id", run.ID, "active", w.Active(), "capacity", w.capacity)
		w.wg.Add(1)
		go func(run *domain.Run) {
			defer w.wg.Done()
			defer func() { <-w.semaphore }()
			w.execute(runCtx, run)
		}(run)
	}
}

// shutdown cancels running runs and waits for them to clean up their sessions.
func (w *Worker) shutdown(cancel context.CancelFunc) {
	logger.Info("Worker stopping, cancelling active runs")
	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("All runs finished gracefully")
	case <-time.After(w.drainTimeout):
		logger.Warn("Shutdown timeout reached, some runs may still be running")
	}
}

func (w *Worker) execute(ctx context.Context, run *domain.Run) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.activeRuns.Store(run.ID, cancel)
	defer w.activeRuns.Delete(run.ID)

	report, err := w.runs.ProcessRun(runCtx, run)
	if err != nil {
		logger.Error("Run failed", "run_id", run.ID, "error", err)
		return
	}
	if report != nil {
		logger.Info("Run done", "run_id", run.ID, "status", report.Status, "elapsed", report.Elapsed().Round(time.Second).String())
	}
}

// CancelRun cancels a run executing on this worker.
func (w *Worker) CancelRun(runID string) bool {
	if cancel, ok := w.activeRuns.Load(runID); ok {
		logger.Info("Cancelling run", "run_id", runID)
		cancel.(context.CancelFunc)()
		return true
	}
	return false
}

// Active returns the number of runs currently executing.
func (w *Worker) Active() int {
	n := 0
	w.activeRuns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (w *Worker) cancelListener(ctx context.Context) {
	ch, err := w.runs.SubscribeCancel(ctx)
	if err != nil {
		logger.Warn("Cancel listener disabled", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ch:
			if !ok {
				return
			}
			w.CancelRun(id)
		}
	}
}

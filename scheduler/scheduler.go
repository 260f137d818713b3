// Package scheduler admits queued scrape tasks under a fixed concurrency
// ceiling, with early slot hand-off at the workflow checkpoint.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/models"
)

// RunFunc executes one domain workflow. Implementations must close
// checkpoint exactly once before returning; the scheduler hands the
// task's slot to the next queued task the moment it observes the close.
type RunFunc func(ctx context.Context, domain string, proxy *models.Proxy, checkpoint chan<- struct{}) (*models.ScrapeResult, error)

// Recorder receives terminal task snapshots for persistence. Called
// outside the scheduler's lock.
type Recorder interface {
	Record(task *models.Task)
}

// Scheduler owns the FIFO queue and the in-flight task registry.
// Terminal tasks leave the registry through the Recorder.
type Scheduler struct {
	run      RunFunc
	recorder Recorder

	maxActive        int
	restartThreshold int

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	queue     []*models.Task
	inFlight  map[string]*models.Task
	active    int
	completed int
	failed    int
	timeouts  int // consecutive timeout-class failures, floor 0
	draining  bool
}

// New builds a scheduler. recorder may be nil.
func New(run RunFunc, recorder Recorder, cfg config.SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		run:              run,
		recorder:         recorder,
		maxActive:        cfg.MaxActive,
		restartThreshold: cfg.RestartThreshold,
		baseCtx:          ctx,
		cancel:           cancel,
		inFlight:         make(map[string]*models.Task),
	}
}

// Submit enqueues a job and starts it immediately when a slot is free.
// The returned task is a snapshot; its state moves on without the caller.
func (s *Scheduler) Submit(spec models.JobSpec) (*models.Task, error) {
	task := &models.Task{
		ID:        uuid.NewString(),
		Domain:    spec.Domain,
		Proxy:     spec.Proxy,
		State:     models.TaskQueued,
		CreatedAt: time.Now(),
	}
	if spec.Proxy != nil {
		task.ProxyServer = spec.Proxy.Server()
	}

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return nil, models.NewScrapeError(
			models.ErrCodeCanceled,
			"scheduler is draining",
			nil,
		)
	}
	s.queue = append(s.queue, task)
	s.inFlight[task.ID] = task
	queueSize := len(s.queue)
	s.mu.Unlock()

	slog.Info("task queued",
		"taskID", task.ID,
		"domain", task.Domain,
		"queueSize", queueSize,
	)
	s.dispatch()

	s.mu.Lock()
	defer s.mu.Unlock()
	return task.Snapshot(), nil
}

// dispatch admits queued tasks while slots are free. The check and the
// slot increment happen atomically under the scheduler lock, so the
// ceiling is never exceeded no matter how many goroutines call in.
func (s *Scheduler) dispatch() {
	for {
		s.mu.Lock()
		if s.draining || s.active >= s.maxActive || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		now := time.Now()
		task.State = models.TaskActive
		task.StartedAt = &now
		s.active++
		s.mu.Unlock()

		slog.Info("task started", "taskID", task.ID, "domain", task.Domain)
		s.wg.Add(1)
		go s.execute(task)
	}
}

func (s *Scheduler) execute(task *models.Task) {
	defer s.wg.Done()

	// The checkpoint close is the early hand-off: the expensive phase of
	// the workflow is done and the slot can load the next page while this
	// task finishes its tail.
	checkpoint := make(chan struct{})
	go func() {
		<-checkpoint
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
		s.dispatch()
	}()

	result, err := s.run(s.baseCtx, task.Domain, task.Proxy, checkpoint)
	now := time.Now()

	s.mu.Lock()
	task.FinishedAt = &now
	if err != nil {
		task.State = models.TaskFailed
		task.Error = err.Error()
		s.failed++
		if models.IsTimeoutClass(err) {
			s.timeouts++
		}
	} else {
		task.State = models.TaskCompleted
		task.Result = result
		s.completed++
		if s.timeouts > 0 {
			s.timeouts--
		}
	}
	delete(s.inFlight, task.ID)
	timeouts := s.timeouts
	snapshot := task.Snapshot()
	s.mu.Unlock()

	if err != nil {
		slog.Warn("task failed",
			"taskID", task.ID,
			"domain", task.Domain,
			"consecutiveTimeouts", timeouts,
			"error", err,
		)
	} else {
		slog.Info("task completed", "taskID", task.ID, "domain", task.Domain)
	}

	if s.recorder != nil {
		s.recorder.Record(snapshot)
	}
	// A terminal outcome can also free a slot indirectly (e.g. the queue
	// grew while all slots were handed off); re-run admission either way.
	s.dispatch()
}

// Task returns a snapshot of a queued or active task.
func (s *Scheduler) Task(id string) (*models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.inFlight[id]
	if !ok {
		return nil, false
	}
	return t.Snapshot(), true
}

// Pending returns snapshots of the queued (not yet admitted) tasks in
// admission order.
func (s *Scheduler) Pending() []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Task, len(s.queue))
	for i, t := range s.queue {
		out[i] = t.Snapshot()
	}
	return out
}

// InFlight returns snapshots of every queued and active task.
func (s *Scheduler) InFlight() []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Task, 0, len(s.inFlight))
	for _, t := range s.inFlight {
		out = append(out, t.Snapshot())
	}
	return out
}

// Status returns aggregate counters.
func (s *Scheduler) Status() models.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SchedulerStats{
		Queued:    len(s.queue),
		Active:    s.active,
		Completed: s.completed,
		Failed:    s.failed,
	}
}

// NeedsRestart reports whether consecutive timeout-class failures have
// reached the restart threshold. The browser is likely wedged at that
// point; an external supervisor should recycle the process.
func (s *Scheduler) NeedsRestart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeouts >= s.restartThreshold
}

// Drain stops admission, fails every queued task, and waits for active
// workflows to finish. When ctx expires first, the workflows' contexts
// are canceled and Drain returns the ctx error.
func (s *Scheduler) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	dropped := s.queue
	s.queue = nil
	now := time.Now()
	for _, t := range dropped {
		t.State = models.TaskFailed
		t.Error = "canceled: scheduler draining"
		t.FinishedAt = &now
		s.failed++
		delete(s.inFlight, t.ID)
	}
	s.mu.Unlock()

	if s.recorder != nil {
		for _, t := range dropped {
			s.recorder.Record(t.Snapshot())
		}
	}
	if len(dropped) > 0 {
		slog.Info("queued tasks dropped on drain", "count", len(dropped))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

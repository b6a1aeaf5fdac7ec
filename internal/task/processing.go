package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Job performs the work of one task and returns the produced output paths.
// It reports progress through the bridge and should return promptly once ctx is done.
type Job func(ctx context.Context, progress *Bridge) ([]string, error)

type RunnerOptions struct {
	MaxConcurrentTasks int
	ProgressCeiling    int
	// OnDiscard is called with the outputs of a job that finished after its
	// task was cancelled or removed. Nothing will reference them afterwards.
	OnDiscard func(taskID string, result []string)
}

// Runner executes jobs in the background with bounded concurrency and
// funnels their outcome into the registry.
type Runner struct {
	registry    *Registry
	semaphore   chan struct{}
	ceiling     int
	onDiscard   func(taskID string, result []string)
	workersWG   sync.WaitGroup
	mu          sync.Mutex
	baseCtx     context.Context
	cancels     map[string]context.CancelFunc
	unsubscribe func()
}

// NewRunner creates a runner bound to the registry. Cancelling or removing a
// task cancels the context handed to its job.
func NewRunner(registry *Registry, opts RunnerOptions) *Runner {
	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = defaultMaxConcurrent
	}
	rn := &Runner{
		registry:  registry,
		semaphore: make(chan struct{}, opts.MaxConcurrentTasks),
		ceiling:   opts.ProgressCeiling,
		onDiscard: opts.OnDiscard,
		baseCtx:   context.Background(),
		cancels:   make(map[string]context.CancelFunc),
	}
	rn.unsubscribe = registry.Subscribe(func(evt Event) {
		if evt.Kind == EventCancelled || evt.Kind == EventRemoved {
			rn.cancel(evt.Task.ID)
		}
	})
	return rn
}

// IsBusy reports whether every processing slot is taken.
func (rn *Runner) IsBusy() bool {
	return len(rn.semaphore) >= cap(rn.semaphore)
}

// Submit schedules job for the task. The task stays pending until a slot frees up.
func (rn *Runner) Submit(taskID string, job Job) error {
	if _, ok := rn.registry.GetTaskByID(taskID); !ok {
		return ErrTaskNotFound
	}
	rn.workersWG.Add(1)
	go func() {
		defer rn.workersWG.Done()
		rn.run(taskID, job)
	}()
	return nil
}

// SetBaseContext sets the context all jobs derive from. Intended to be set at
// process startup and cancelled during shutdown.
func (rn *Runner) SetBaseContext(ctx context.Context) {
	rn.mu.Lock()
	rn.baseCtx = ctx
	rn.mu.Unlock()
}

// WaitAll blocks until all in-flight jobs finish or the context is done.
// Returns true if all jobs finished, false if timed out.
func (rn *Runner) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		rn.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close detaches the runner from the registry.
func (rn *Runner) Close() {
	rn.unsubscribe()
}

func (rn *Runner) run(taskID string, job Job) {
	rn.mu.Lock()
	base := rn.baseCtx
	rn.mu.Unlock()

	select {
	case rn.semaphore <- struct{}{}:
	case <-base.Done():
		rn.failTask(taskID, ErrRunnerStopped.Error())
		return
	}
	defer func() { <-rn.semaphore }()

	ctx, cancel := context.WithCancel(base)
	defer cancel()
	if !rn.track(taskID, cancel) {
		log.Info().Str("task_id", taskID).Msg("task no longer active, skipping")
		return
	}
	defer rn.untrack(taskID)

	if err := rn.registry.UpdateTaskProgress(Progress{TaskID: taskID, Progress: 0, CurrentStep: "started"}); err != nil {
		log.Info().Str("task_id", taskID).Err(err).Msg("task no longer active, skipping")
		return
	}

	result, err := rn.execute(ctx, job, NewBridge(rn.registry, taskID, rn.ceiling))
	if rn.discarded(taskID) {
		log.Info().Str("task_id", taskID).Int("outputs", len(result)).Msg("task cancelled, result discarded")
		if len(result) > 0 && rn.onDiscard != nil {
			rn.onDiscard(taskID, result)
		}
		return
	}
	if err != nil {
		rn.failTask(taskID, err.Error())
		return
	}

	err = rn.registry.UpdateTask(taskID, Patch{
		Result:      result,
		Progress:    IntPtr(progressMax),
		CurrentStep: StringPtr("done"),
	})
	if err != nil {
		log.Warn().Str("task_id", taskID).Err(err).Msg("completing task failed")
		return
	}
	log.Info().Str("task_id", taskID).Int("outputs", len(result)).Msg("task completed")
}

func (rn *Runner) execute(ctx context.Context, job Job, bridge *Bridge) (result []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("task_id", bridge.TaskID()).Interface("panic", rec).Msg("job panicked")
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()
	return job(ctx, bridge)
}

func (rn *Runner) discarded(taskID string) bool {
	t, ok := rn.registry.GetTaskByID(taskID)
	return !ok || t.Status == StatusCancelled
}

func (rn *Runner) failTask(taskID, msg string) {
	err := rn.registry.UpdateTask(taskID, Patch{Status: StatusPtr(StatusError), Error: StringPtr(msg)})
	if err != nil && !errors.Is(err, ErrTaskTerminal) && !errors.Is(err, ErrTaskNotFound) {
		log.Warn().Str("task_id", taskID).Err(err).Msg("marking task failed")
		return
	}
	log.Warn().Str("task_id", taskID).Str("error", msg).Msg("task failed")
}

// track registers the cancel func unless the task is already gone or finished.
func (rn *Runner) track(taskID string, cancel context.CancelFunc) bool {
	rn.mu.Lock()
	rn.cancels[taskID] = cancel
	rn.mu.Unlock()
	t, ok := rn.registry.GetTaskByID(taskID)
	if !ok || t.Status.IsTerminal() {
		rn.untrack(taskID)
		return false
	}
	return true
}

func (rn *Runner) untrack(taskID string) {
	rn.mu.Lock()
	delete(rn.cancels, taskID)
	rn.mu.Unlock()
}

func (rn *Runner) cancel(taskID string) {
	rn.mu.Lock()
	cancel, ok := rn.cancels[taskID]
	rn.mu.Unlock()
	if ok {
		cancel()
	}
}

package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type EventKind string

const (
	EventAdded     EventKind = "added"
	EventUpdated   EventKind = "updated"
	EventProgress  EventKind = "progress"
	EventCancelled EventKind = "cancelled"
	EventRemoved   EventKind = "removed"
)

// Event describes one registry mutation. Task is a snapshot taken at mutation time.
type Event struct {
	Kind        EventKind
	Task        Task
	ActiveCount int
	// Finished is set on the event whose mutation moved the task into a terminal status.
	Finished bool
}

// Registry is the in-memory source of truth for task lifecycle state.
// All methods are safe for concurrent use. Listeners registered with
// Subscribe are called without the registry lock held, in mutation order,
// so they may call back into the registry.
type Registry struct {
	mu          sync.RWMutex
	tasks       map[string]*Task
	order       []string
	activeCount int
	evictions   map[string]Timer
	evictAfter  time.Duration
	noEviction  bool
	scheduler   Scheduler
	now         func() time.Time

	queueMu      sync.Mutex
	queue        []Event
	draining     bool
	listeners    map[int]func(Event)
	nextListener int
}

// NewRegistry creates a registry with default options.
func NewRegistry() *Registry {
	return NewRegistryWithOptions(Options{})
}

// NewRegistryWithOptions creates a registry with provided configuration.
func NewRegistryWithOptions(opts Options) *Registry {
	if opts.EvictAfter <= 0 {
		opts.EvictAfter = DefaultEvictAfter
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		tasks:      make(map[string]*Task),
		evictions:  make(map[string]Timer),
		evictAfter: opts.EvictAfter,
		noEviction: opts.DisableEviction,
		scheduler:  opts.Scheduler,
		now:        opts.Now,
		listeners:  make(map[int]func(Event)),
	}
}

func newTaskID() string {
	return "task_" + uuid.Must(uuid.NewV7()).String()
}

// AddTask registers a new pending task and returns its id.
func (r *Registry) AddTask(nt NewTask) (string, error) {
	if nt.Config != nil && nt.Config.Type() != nt.Type {
		return "", NewErrConfigMismatch(nt.Type, nt.Config.Type())
	}
	newTask := &Task{
		ID:         newTaskID(),
		Type:       nt.Type,
		Status:     StatusPending,
		Progress:   progressMin,
		Filename:   nt.Filename,
		TotalFiles: nt.TotalFiles,
		StartTime:  r.now(),
		Config:     nt.Config,
	}

	r.mu.Lock()
	r.tasks[newTask.ID] = newTask
	r.order = append(r.order, newTask.ID)
	r.recount()
	r.enqueue(EventAdded, newTask, false)
	r.mu.Unlock()
	r.flush()

	log.Debug().Str("task_id", newTask.ID).Str("type", string(newTask.Type)).Msg("task added")
	return newTask.ID, nil
}

// UpdateTask merges the patch into the task. Tasks in a terminal status are
// left untouched and ErrTaskTerminal is returned. A status never moves back
// to pending once processing has started.
func (r *Registry) UpdateTask(id string, p Patch) error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", *p.Status)
	}

	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		r.mu.Unlock()
		return ErrTaskTerminal
	}

	if p.Filename != nil {
		t.Filename = *p.Filename
	}
	if p.TotalFiles != nil {
		t.TotalFiles = *p.TotalFiles
	}
	if p.CurrentFile != nil {
		t.CurrentFile = *p.CurrentFile
	}
	if p.Result != nil {
		t.Result = append([]string(nil), p.Result...)
	}
	if p.Error != nil {
		t.Error = *p.Error
	}
	if p.CurrentStep != nil {
		t.CurrentStep = *p.CurrentStep
	}
	if p.Message != nil {
		t.Message = *p.Message
	}
	if p.Progress != nil {
		r.setProgress(t, *p.Progress)
	}
	if p.Status != nil {
		switch target := *p.Status; {
		case target == StatusPending:
			// only valid while still pending
		case target == StatusCompleted:
			t.Status = StatusCompleted
			t.Progress = progressMax
		default:
			t.Status = target
		}
	}
	if !t.Status.IsTerminal() && t.Progress == progressMax {
		t.Status = StatusCompleted
	}

	finished := t.Status.IsTerminal()
	if finished {
		r.finish(t)
	}
	r.recount()
	r.enqueue(EventUpdated, t, finished)
	r.mu.Unlock()
	r.flush()
	return nil
}

// UpdateTaskProgress records progress for a running task. Progress is
// clamped to [0,100] and never decreases; 100 completes the task.
func (r *Registry) UpdateTaskProgress(p Progress) error {
	r.mu.Lock()
	t, ok := r.tasks[p.TaskID]
	if !ok {
		r.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		r.mu.Unlock()
		return ErrTaskTerminal
	}

	r.setProgress(t, p.Progress)
	if p.CurrentStep != "" {
		t.CurrentStep = p.CurrentStep
	}
	if p.Message != "" {
		t.Message = p.Message
	}
	finished := t.Progress == progressMax
	if finished {
		t.Status = StatusCompleted
		r.finish(t)
	} else {
		t.Status = StatusProcessing
	}
	r.recount()
	r.enqueue(EventProgress, t, finished)
	r.mu.Unlock()
	r.flush()

	if finished {
		log.Debug().Str("task_id", p.TaskID).Msg("task reached 100%")
	}
	return nil
}

// RemoveTask deletes the task. Removing an unknown id is a no-op.
func (r *Registry) RemoveTask(id string) {
	r.mu.Lock()
	removed := r.removeLocked(id)
	r.mu.Unlock()
	if removed {
		r.flush()
	}
}

// CancelTask marks an active task as cancelled. It does not interrupt work
// in flight; runners observe the status change and discard the result.
func (r *Registry) CancelTask(id string) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		r.mu.Unlock()
		return ErrTaskTerminal
	}
	t.Status = StatusCancelled
	r.finish(t)
	r.recount()
	r.enqueue(EventCancelled, t, true)
	r.mu.Unlock()
	r.flush()

	log.Info().Str("task_id", id).Msg("task cancelled")
	return nil
}

// ClearCompleted removes every task in a terminal status and returns how many were removed.
func (r *Registry) ClearCompleted() int {
	r.mu.Lock()
	var ids []string
	for _, id := range r.order {
		if r.tasks[id].Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		r.removeLocked(id)
	}
	r.mu.Unlock()
	r.flush()
	return len(ids)
}

// GetTaskByID returns a snapshot of the task.
func (r *Registry) GetTaskByID(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

// GetTasksByStatus returns snapshots of all tasks in the given status, in creation order.
func (r *Registry) GetTasksByStatus(status Status) []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0)
	for _, id := range r.order {
		if t := r.tasks[id]; t.Status == status {
			out = append(out, t.clone())
		}
	}
	return out
}

// Tasks returns snapshots of all tasks in creation order.
func (r *Registry) Tasks() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id].clone())
	}
	return out
}

// ActiveCount returns the number of pending or processing tasks.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCount
}

// Subscribe registers fn for every subsequent event and returns a function that unregisters it.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.queueMu.Lock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	r.queueMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.queueMu.Lock()
			delete(r.listeners, id)
			r.queueMu.Unlock()
		})
	}
}

func (r *Registry) setProgress(t *Task, v int) {
	if v < progressMin {
		v = progressMin
	}
	if v > progressMax {
		v = progressMax
	}
	if v < t.Progress {
		return
	}
	t.Progress = v
}

// finish stamps EndTime once and schedules eviction. Caller holds r.mu.
func (r *Registry) finish(t *Task) {
	if t.EndTime == nil {
		end := r.now()
		t.EndTime = &end
	}
	if r.noEviction {
		return
	}
	if _, scheduled := r.evictions[t.ID]; scheduled {
		return
	}
	id := t.ID
	r.evictions[id] = r.scheduler.AfterFunc(r.evictAfter, func() { r.evict(id) })
	log.Debug().Str("task_id", id).Dur("after", r.evictAfter).Msg("task eviction scheduled")
}

func (r *Registry) evict(id string) {
	r.mu.Lock()
	delete(r.evictions, id)
	t, ok := r.tasks[id]
	if !ok || !t.Status.IsTerminal() {
		r.mu.Unlock()
		return
	}
	r.removeLocked(id)
	r.mu.Unlock()
	r.flush()
	log.Debug().Str("task_id", id).Msg("task evicted")
}

// removeLocked deletes the task and stops its eviction timer. Caller holds r.mu.
func (r *Registry) removeLocked(id string) bool {
	if timer, ok := r.evictions[id]; ok {
		timer.Stop()
		delete(r.evictions, id)
	}
	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.recount()
	r.enqueue(EventRemoved, t, false)
	return true
}

func (r *Registry) recount() {
	n := 0
	for _, t := range r.tasks {
		if t.Status.IsActive() {
			n++
		}
	}
	r.activeCount = n
}

// enqueue records an event for delivery. Caller holds r.mu.
func (r *Registry) enqueue(kind EventKind, t *Task, finished bool) {
	evt := Event{Kind: kind, Task: t.clone(), ActiveCount: r.activeCount, Finished: finished}
	r.queueMu.Lock()
	r.queue = append(r.queue, evt)
	r.queueMu.Unlock()
}

// flush delivers queued events. Only one goroutine delivers at a time; a
// nested or concurrent call leaves its events to the active deliverer.
func (r *Registry) flush() {
	r.queueMu.Lock()
	if r.draining {
		r.queueMu.Unlock()
		return
	}
	r.draining = true
	for len(r.queue) > 0 {
		evt := r.queue[0]
		r.queue = r.queue[1:]
		listeners := make([]func(Event), 0, len(r.listeners))
		for i := 0; i < r.nextListener; i++ {
			if fn, ok := r.listeners[i]; ok {
				listeners = append(listeners, fn)
			}
		}
		r.queueMu.Unlock()
		for _, fn := range listeners {
			deliver(fn, evt)
		}
		r.queueMu.Lock()
	}
	r.draining = false
	r.queueMu.Unlock()
}

func deliver(fn func(Event), evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("task_id", evt.Task.ID).Interface("panic", rec).Msg("task listener panicked")
		}
	}()
	fn(evt)
}

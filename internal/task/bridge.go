package task

import (
	"math"

	"github.com/rs/zerolog/log"
)

// DefaultProgressCeiling is the percentage executors can report on their own.
// The remainder is reserved for output dispatch, which the runner completes.
const DefaultProgressCeiling = 95

// UnitEvent reports that Done of Total units of work are finished.
type UnitEvent struct {
	TaskID  string
	Done    int
	Total   int
	Step    string
	Message string
}

// UnitListener receives progress events from executors.
type UnitListener interface {
	OnUnit(UnitEvent)
}

type UnitListenerFunc func(UnitEvent)

func (f UnitListenerFunc) OnUnit(e UnitEvent) { f(e) }

// Bridge translates unit events of one task into registry progress updates.
type Bridge struct {
	registry *Registry
	taskID   string
	ceiling  int
}

func NewBridge(registry *Registry, taskID string, ceiling int) *Bridge {
	if ceiling <= 0 || ceiling > progressMax {
		ceiling = DefaultProgressCeiling
	}
	return &Bridge{registry: registry, taskID: taskID, ceiling: ceiling}
}

func (b *Bridge) TaskID() string { return b.taskID }

func (b *Bridge) OnUnit(e UnitEvent) {
	err := b.registry.UpdateTaskProgress(Progress{
		TaskID:      b.taskID,
		Progress:    Percent(e.Done, e.Total, b.ceiling),
		CurrentStep: e.Step,
		Message:     e.Message,
	})
	if err != nil {
		log.Debug().Str("task_id", b.taskID).Err(err).Msg("progress update ignored")
	}
}

// Cancelled reports whether the task was cancelled or is gone.
func (b *Bridge) Cancelled() bool {
	t, ok := b.registry.GetTaskByID(b.taskID)
	return !ok || t.Status == StatusCancelled
}

// Percent maps done/total onto [0, ceiling], rounding to the nearest integer.
func Percent(done, total, ceiling int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done > total {
		done = total
	}
	return int(math.Round(float64(done) * float64(ceiling) / float64(total)))
}

package task

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskTerminal  = errors.New("task already finished")
	ErrCancelled     = errors.New("task cancelled")
	ErrRunnerStopped = errors.New("runner stopped")
)

func NewErrConfigMismatch(taskType, configType Type) error {
	return fmt.Errorf("config for %s cannot be used with a %s task", configType, taskType)
}

package tasks

import (
	"context"
	"fmt"

	"newsagent/logging"
	"newsagent/types"

	"github.com/charmbracelet/log"
)

// Tracker reports the progress of one task to a Store.
type Tracker struct {
	store  Store
	id     string
	logger *log.Logger
}

// NewTracker returns a tracker for task id.
func NewTracker(store Store, id string) *Tracker {
	return &Tracker{store: store, id: id, logger: logging.WithPrefix("task").With("task_id", id)}
}

// ID returns the tracked task id.
func (t *Tracker) ID() string { return t.id }

// Start marks the task running.
func (t *Tracker) Start(ctx context.Context) error {
	return t.update(ctx, func(task *types.Task) {
		task.Status = types.TaskRunning
		task.AddLog("started")
	})
}

// SetScope records the session scope the task works on.
func (t *Tracker) SetScope(ctx context.Context, scopeID int64) error {
	return t.update(ctx, func(task *types.Task) {
		task.ScopeID = types.Int64Ptr(scopeID)
	})
}

// Step updates one step's status, progress and message.
func (t *Tracker) Step(ctx context.Context, index int, status types.TaskStatus, progress int, message string) error {
	t.logger.Debug("step", "index", index, "status", status, "progress", progress, "message", message)
	return t.update(ctx, func(task *types.Task) {
		task.UpdateStep(index, status, progress, message)
		if index >= 0 && index < len(types.StepNames) && (status != types.TaskRunning || progress == 0) {
			task.AddLog(fmt.Sprintf("%s: %s", types.StepNames[index], message))
		}
	})
}

// Complete marks the task completed with final statistics.
func (t *Tracker) Complete(ctx context.Context, stats types.Statistics) error {
	t.logger.Info("task completed", "total", stats.Total, "relevant", stats.Relevant, "duplicates", stats.Duplicates)
	return t.update(ctx, func(task *types.Task) {
		task.Status = types.TaskCompleted
		task.Statistics = &stats
		task.AddLog("completed")
	})
}

// Fail marks the task and its current step as errored.
func (t *Tracker) Fail(ctx context.Context, err error) error {
	t.logger.Error("task failed", "err", err)
	return t.update(ctx, func(task *types.Task) {
		task.Status = types.TaskError
		task.ErrorMessage = err.Error()
		if task.CurrentStep >= 0 && task.CurrentStep < len(task.Steps) && task.Steps[task.CurrentStep].Status != types.TaskCompleted {
			task.Steps[task.CurrentStep].Status = types.TaskError
		}
		task.AddLog("error: " + err.Error())
	})
}

func (t *Tracker) update(ctx context.Context, fn func(*types.Task)) error {
	if err := t.store.Update(ctx, t.id, fn); err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.id, err)
	}
	return nil
}

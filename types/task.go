package types

import "time"

// TaskStatus is the lifecycle state of a processing task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// Step indexes
const (
	StepCollect = iota
	StepDeduplicate
	StepClassify
)

// StepNames are the display names of the three processing steps
var StepNames = []string{
	"Collect articles from RSS feeds",
	"Deduplicate articles",
	"Classify by relevance",
}

// Step is the progress of a single processing step
type Step struct {
	Name     string     `json:"name"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Message  string     `json:"message"`
}

// Statistics summarizes the article store after a run
type Statistics struct {
	Total             int    `json:"total"`
	Relevant          int    `json:"relevant"`
	Duplicates        int    `json:"duplicates"`
	UniqueNonRelevant int    `json:"unique_non_relevant"`
	Message           string `json:"message,omitempty"`
}

// Task is the observable state of one submitted processing pass
type Task struct {
	ID           string      `json:"task_id"`
	Status       TaskStatus  `json:"status"`
	CurrentStep  int         `json:"current_step"`
	TotalSteps   int         `json:"total_steps"`
	Steps        []Step      `json:"steps"`
	ErrorMessage string      `json:"error_message"`
	Statistics   *Statistics `json:"statistics,omitempty"`
	ScopeID      *int64      `json:"scope_id,omitempty"`
	Logs         []LogEntry  `json:"logs,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// LogEntry is one timestamped progress line of a task
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// MaxTaskLogs bounds the log ring kept on each task
const MaxTaskLogs = 50

// NewTask returns a pending task with all steps pending
func NewTask(id string) *Task {
	now := time.Now()
	steps := make([]Step, len(StepNames))
	for i, name := range StepNames {
		steps[i] = Step{Name: name, Status: TaskPending}
	}
	return &Task{
		ID:         id,
		Status:     TaskPending,
		TotalSteps: len(steps),
		Steps:      steps,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UpdateStep sets the state of one step and makes it the current step. Out of range indexes are ignored.
func (t *Task) UpdateStep(index int, status TaskStatus, progress int, message string) {
	if index < 0 || index >= len(t.Steps) {
		return
	}
	t.Steps[index].Status = status
	t.Steps[index].Progress = progress
	t.Steps[index].Message = message
	t.CurrentStep = index
}

// AddLog appends a log entry, keeping only the last MaxTaskLogs entries
func (t *Task) AddLog(message string) {
	t.Logs = append(t.Logs, LogEntry{Timestamp: time.Now(), Message: message})
	if len(t.Logs) > MaxTaskLogs {
		t.Logs = t.Logs[len(t.Logs)-MaxTaskLogs:]
	}
}

// Done reports whether the task reached a terminal state
func (t *Task) Done() bool {
	return t.Status == TaskCompleted || t.Status == TaskError
}

// Clone returns a deep copy safe to hand to readers
func (t *Task) Clone() *Task {
	c := *t
	c.Steps = append([]Step(nil), t.Steps...)
	c.Logs = append([]LogEntry(nil), t.Logs...)
	if t.Statistics != nil {
		s := *t.Statistics
		c.Statistics = &s
	}
	if t.ScopeID != nil {
		id := *t.ScopeID
		c.ScopeID = &id
	}
	return &c
}

// ProcessRequest asks for one processing pass over a set of feeds
type ProcessRequest struct {
	Feeds    []string `json:"feeds"`
	Criteria string   `json:"criteria"`
}

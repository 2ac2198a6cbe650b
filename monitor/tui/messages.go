package tui

import (
	"time"

	"newsagent/types"
)

// StartedMsg is sent once the server accepted the processing request
type StartedMsg struct {
	TaskID string
	Err    error
}

// StatusUpdateMsg carries the result of one status poll
type StatusUpdateMsg struct {
	Task *types.Task
	Err  error
}

// TickMsg triggers the next poll
type TickMsg struct {
	Time time.Time
}

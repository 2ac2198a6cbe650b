// Package tui is a polling terminal client that follows one processing task.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"newsagent/types"
)

// Options configure what the monitor follows
type Options struct {
	ServerURL string
	TaskID    string
	Feeds     []string
	Criteria  string
}

// Model is the monitor state, synced from the server by polling
type Model struct {
	Client   *Client
	TaskID   string
	Feeds    []string
	Criteria string

	Task      *types.Task
	Err       error
	Connected bool
	// Fatal is set when the task could not be started at all
	Fatal bool
}

// NewModel creates a monitor model. With an empty TaskID it starts a new task first.
func NewModel(opts Options) Model {
	return Model{
		Client:   NewClient(opts.ServerURL),
		TaskID:   opts.TaskID,
		Feeds:    opts.Feeds,
		Criteria: opts.Criteria,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.TaskID == "" {
		return startTask(m.Client, m.Feeds, m.Criteria)
	}
	return tea.Batch(pollStatus(m.Client, m.TaskID), tickCmd())
}

// Finished reports whether there is nothing left to poll
func (m Model) Finished() bool {
	return m.Fatal || (m.Task != nil && m.Task.Done())
}

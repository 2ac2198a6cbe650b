package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case StartedMsg:
		return m.handleStarted(msg)
	case StatusUpdateMsg:
		return m.handleStatus(msg)
	case TickMsg:
		if m.Finished() || m.TaskID == "" {
			return m, nil
		}
		return m, tea.Batch(pollStatus(m.Client, m.TaskID), tickCmd())
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "Q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleStarted(msg StartedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Fatal = true
		m.Err = fmt.Errorf("failed to start task: %w", msg.Err)
		return m, nil
	}
	m.TaskID = msg.TaskID
	m.Connected = true
	return m, tea.Batch(pollStatus(m.Client, m.TaskID), tickCmd())
}

// Poll errors are transient: the next tick retries.
func (m Model) handleStatus(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Err = nil
	m.Task = msg.Task
	return m, nil
}

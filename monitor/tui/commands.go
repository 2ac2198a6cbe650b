package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const pollInterval = 500 * time.Millisecond

func startTask(client *Client, feeds []string, criteria string) tea.Cmd {
	return func() tea.Msg {
		id, err := client.Start(context.Background(), feeds, criteria)
		return StartedMsg{TaskID: id, Err: err}
	}
}

func pollStatus(client *Client, taskID string) tea.Cmd {
	return func() tea.Msg {
		task, err := client.GetStatus(context.Background(), taskID)
		return StatusUpdateMsg{Task: task, Err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

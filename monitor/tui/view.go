package tui

import (
	"fmt"
	"strings"

	"newsagent/types"
)

const (
	barWidth = 30
	maxLogs  = 8
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(TextTitle))
	b.WriteString("\n\n")

	if m.TaskID != "" {
		b.WriteString(InfoStyle.Render("Task: " + m.TaskID))
		b.WriteString("\n\n")
	}

	b.WriteString(m.stateText())
	b.WriteString("\n\n")

	if m.Task != nil {
		for i, step := range m.Task.Steps {
			b.WriteString(renderStep(i, step))
			b.WriteString("\n")
		}
		b.WriteString("\n")

		if m.Task.Statistics != nil {
			b.WriteString(BoxStyle.Render(formatStatistics(m.Task.Statistics)))
			b.WriteString("\n\n")
		}

		if logs := recentLogs(m.Task.Logs, maxLogs); len(logs) > 0 {
			b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
			b.WriteString("\n")
			for _, entry := range logs {
				line := fmt.Sprintf("   %s %s", entry.Timestamp.Local().Format("15:04:05"), entry.Message)
				b.WriteString(InfoStyle.Render(line))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if m.Finished() {
		b.WriteString(HighlightStyle.Render(TextFooterFinished))
	} else {
		b.WriteString(InfoStyle.Render(TextFooterRunning))
	}
	return b.String()
}

func (m Model) stateText() string {
	switch {
	case m.Fatal:
		return ErrorStyle.Render(fmt.Sprintf("❌ %v", m.Err))
	case m.Err != nil && !m.Connected:
		return ErrorStyle.Render(fmt.Sprintf("❌ Not connected: %v", m.Err))
	case m.TaskID == "":
		return StatusStyle.Render(TextStarting)
	case m.Task == nil:
		return StatusStyle.Render(TextWaiting)
	}

	switch m.Task.Status {
	case types.TaskCompleted:
		return HighlightStyle.Render("✅ COMPLETE")
	case types.TaskError:
		msg := m.Task.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return ErrorStyle.Render("❌ Error: " + msg)
	case types.TaskRunning:
		return StatusStyle.Render(fmt.Sprintf("⏳ Step %d of %d", m.Task.CurrentStep+1, m.Task.TotalSteps))
	default:
		return StatusStyle.Render("⏳ Queued")
	}
}

func renderStep(index int, step types.Step) string {
	icon := "○"
	style := InfoStyle
	switch step.Status {
	case types.TaskRunning:
		icon, style = "◐", StatusStyle
	case types.TaskCompleted:
		icon, style = "●", StatusStyle
	case types.TaskError:
		icon, style = "✗", ErrorStyle
	}

	line := style.Render(fmt.Sprintf("%s %d. %s", icon, index+1, step.Name))
	line += "  " + progressBar(step.Progress, barWidth) + fmt.Sprintf(" %3d%%", clampPercent(step.Progress))
	if step.Message != "" {
		line += "\n     " + InfoStyle.Render(step.Message)
	}
	return line
}

func progressBar(percent, width int) string {
	filled := clampPercent(percent) * width / 100
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func formatStatistics(s *types.Statistics) string {
	var b strings.Builder
	b.WriteString("📊 Statistics\n\n")
	fmt.Fprintf(&b, "Total articles:      %d\n", s.Total)
	fmt.Fprintf(&b, "Relevant:            %d\n", s.Relevant)
	fmt.Fprintf(&b, "Duplicates:          %d\n", s.Duplicates)
	fmt.Fprintf(&b, "Unique non-relevant: %d", s.UniqueNonRelevant)
	if s.Message != "" {
		b.WriteString("\n\n" + s.Message)
	}
	return b.String()
}

func recentLogs(logs []types.LogEntry, n int) []types.LogEntry {
	if len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

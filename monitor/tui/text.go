package tui

const (
	TextTitle          = "📰 News Agent Monitor"
	TextStarting       = "⏳ Submitting processing request..."
	TextWaiting        = "⏳ Waiting for task status..."
	TextFooterRunning  = "Press 'q' to detach (processing continues on the server)"
	TextFooterFinished = "Press 'q' or Ctrl+C to exit"
)

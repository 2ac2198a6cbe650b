package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"newsagent/config"
	"newsagent/monitor/tui"
)

func main() {
	_ = godotenv.Load()

	serverURL := flag.String("url", "http://localhost:8080", "API server URL")
	feeds := flag.String("feeds", os.Getenv("DEFAULT_FEEDS"), "comma separated feed URLs or preset names")
	criteria := flag.String("criteria", os.Getenv("DEFAULT_CRITERIA"), "selection criteria")
	taskID := flag.String("task", "", "attach to an existing task instead of starting one")
	flag.Parse()

	opts := tui.Options{
		ServerURL: *serverURL,
		TaskID:    *taskID,
		Feeds:     config.ParseFeedList(*feeds),
		Criteria:  *criteria,
	}
	if opts.TaskID == "" && len(opts.Feeds) == 0 {
		fmt.Fprintln(os.Stderr, "either -task or -feeds is required")
		os.Exit(2)
	}

	program := tea.NewProgram(tui.NewModel(opts))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

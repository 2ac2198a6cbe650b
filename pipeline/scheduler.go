package pipeline

import (
	"context"
	"errors"
	"fmt"

	"newsagent/logging"
	"newsagent/types"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Submitter queues processing requests.
type Submitter interface {
	Submit(ctx context.Context, req types.ProcessRequest) (string, error)
}

// Scheduler submits a fixed request on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	queue   Submitter
	request types.ProcessRequest
	logger  *log.Logger
}

// NewScheduler registers req to be submitted on the standard 5-field cron schedule (or a descriptor like @hourly).
func NewScheduler(queue Submitter, schedule string, req types.ProcessRequest) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		queue:   queue,
		request: req,
		logger:  logging.WithPrefix("cron"),
	}
	if _, err := s.cron.AddFunc(schedule, s.trigger); err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron job started", "feeds", len(s.request.Feeds))
}

// Stop stops scheduling and returns a context that is done once running triggers finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) trigger() {
	id, err := s.queue.Submit(context.Background(), s.request)
	switch {
	case err == nil:
		s.logger.Info("scheduled run submitted", "task_id", id)
	case errors.Is(err, ErrQueueFull):
		s.logger.Warn("scheduled run skipped: workers busy")
	default:
		s.logger.Error("scheduled run failed", "err", err)
	}
}

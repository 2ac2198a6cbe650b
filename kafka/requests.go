package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsagent/config"
	"newsagent/logging"
	"newsagent/pipeline"
	"newsagent/types"
)

// Submitter queues a processing request and returns its task id.
type Submitter interface {
	Submit(ctx context.Context, req types.ProcessRequest) (string, error)
}

var (
	submitAttempts = 3
	submitBackoff  = 2 * time.Second
)

// NewRequestHandler decodes {"feeds": [...], "criteria": "..."} messages and submits them.
// Messages without feeds are marked and dropped. A full queue is retried with backoff;
// a request that still cannot be submitted is left unmarked.
func NewRequestHandler(submitter Submitter) *TypedMessageHandler[types.ProcessRequest] {
	return &TypedMessageHandler[types.ProcessRequest]{
		Validate: func(req *types.ProcessRequest) bool {
			req.Feeds = config.ResolveFeedURLs(req.Feeds)
			req.Criteria = strings.TrimSpace(req.Criteria)
			if len(req.Feeds) == 0 {
				logging.Warn("dropping request without feeds")
				return false
			}
			return true
		},
		Process: func(ctx context.Context, req *types.ProcessRequest) error {
			id, err := submitWithRetry(ctx, submitter, *req)
			if err != nil {
				return err
			}
			logging.Info("request submitted from kafka", "task_id", id, "feeds", len(req.Feeds))
			return nil
		},
		AlwaysMark: true,
	}
}

func submitWithRetry(ctx context.Context, submitter Submitter, req types.ProcessRequest) (string, error) {
	var err error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		var id string
		id, err = submitter.Submit(ctx, req)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pipeline.ErrQueueFull) || attempt == submitAttempts {
			break
		}

		logging.Debug("queue full, retrying kafka request", "attempt", attempt)
		select {
		case <-time.After(submitBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("failed to submit request: %w", err)
}

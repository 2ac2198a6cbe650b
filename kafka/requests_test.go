package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsagent/config"
	"newsagent/pipeline"
	"newsagent/types"
)

type fakeSubmitter struct {
	got   []types.ProcessRequest
	err   error
	fails int // leading calls that fail with err
	calls int
}

func (f *fakeSubmitter) Submit(_ context.Context, req types.ProcessRequest) (string, error) {
	f.calls++
	if f.err != nil && (f.fails == 0 || f.calls <= f.fails) {
		return "", f.err
	}
	f.got = append(f.got, req)
	return "task-1", nil
}

func TestRequestHandler(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		submitErr error
		wantMark  bool
		wantErr   bool
		wantCalls int
	}{
		{"valid", `{"feeds":["hn","https://a.test/rss"],"criteria":" ai "}`, nil, true, false, 1},
		{"malformed json", `{"feeds":`, nil, true, false, 0},
		{"no feeds", `{"feeds":[" "],"criteria":"x"}`, nil, true, false, 0},
		{"submit failure", `{"feeds":["https://a.test/rss"]}`, errors.New("boom"), false, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{err: tt.submitErr}
			mark, err := NewRequestHandler(sub).HandleMessage(context.Background(), []byte(tt.message))
			if mark != tt.wantMark || (err != nil) != tt.wantErr {
				t.Fatalf("HandleMessage = %v, %v; want mark=%v err=%v", mark, err, tt.wantMark, tt.wantErr)
			}
			if len(sub.got) != tt.wantCalls {
				t.Fatalf("submitted %d requests; want %d", len(sub.got), tt.wantCalls)
			}
		})
	}
}

func TestRequestHandlerResolvesFeeds(t *testing.T) {
	sub := &fakeSubmitter{}
	_, err := NewRequestHandler(sub).HandleMessage(context.Background(), []byte(`{"feeds":["st","st"],"criteria":"  local news "}`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	req := sub.got[0]
	if len(req.Feeds) != 1 || req.Feeds[0] != config.FeedPresets["st"] || req.Criteria != "local news" {
		t.Fatalf("submitted %+v", req)
	}
}

func TestRequestHandlerRetriesFullQueue(t *testing.T) {
	old := submitBackoff
	submitBackoff = time.Millisecond
	t.Cleanup(func() { submitBackoff = old })

	sub := &fakeSubmitter{err: pipeline.ErrQueueFull, fails: 2}
	mark, err := NewRequestHandler(sub).HandleMessage(context.Background(), []byte(`{"feeds":["https://a.test/rss"]}`))
	if err != nil || !mark {
		t.Fatalf("HandleMessage = %v, %v; want marked", mark, err)
	}
	if sub.calls != 3 || len(sub.got) != 1 {
		t.Fatalf("calls = %d, submitted = %d", sub.calls, len(sub.got))
	}

	sub = &fakeSubmitter{err: pipeline.ErrQueueFull}
	mark, err = NewRequestHandler(sub).HandleMessage(context.Background(), []byte(`{"feeds":["https://a.test/rss"]}`))
	if mark || !errors.Is(err, pipeline.ErrQueueFull) {
		t.Fatalf("HandleMessage = %v, %v; want unmarked ErrQueueFull", mark, err)
	}
	if sub.calls != submitAttempts {
		t.Fatalf("calls = %d, want %d", sub.calls, submitAttempts)
	}
}

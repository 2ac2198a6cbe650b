package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"newsagent/logging"
	"newsagent/tasks"
	"newsagent/types"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned when every worker is busy and the buffer is full.
	ErrQueueFull = errors.New("processing queue is full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("processing queue is closed")
	// ErrNoFeeds is returned for requests without any feed URL.
	ErrNoFeeds = errors.New("no RSS feeds provided")
)

// JobRunner executes one job.
type JobRunner interface {
	Run(ctx context.Context, job Job) error
}

// Queue runs submitted jobs on a fixed pool of workers.
type Queue struct {
	runner JobRunner
	tasks  tasks.Store
	jobs   chan Job
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers goroutines reading from a buffer of size jobs.
func NewQueue(runner JobRunner, taskStore tasks.Store, workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		runner: runner,
		tasks:  taskStore,
		jobs:   make(chan Job, size),
		logger: logging.WithPrefix("queue"),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Submit registers a pending task for req and queues it. It returns the task id.
func (q *Queue) Submit(ctx context.Context, req types.ProcessRequest) (string, error) {
	if len(req.Feeds) == 0 {
		return "", ErrNoFeeds
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	id := uuid.NewString()
	if err := q.tasks.Create(ctx, types.NewTask(id)); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	job := Job{TaskID: id, Feeds: req.Feeds, Criteria: req.Criteria}
	select {
	case q.jobs <- job:
		q.logger.Info("job queued", "task_id", id, "feeds", len(req.Feeds))
		return id, nil
	default:
		_ = q.tasks.Delete(ctx, id)
		return "", ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued and running ones to finish.
// When ctx ends first, running jobs are canceled and ctx's error is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.execute(id, job)
	}
}

func (q *Queue) execute(workerID int, job Job) {
	defer func() {
		if p := recover(); p != nil {
			q.logger.Error("job panicked", "worker", workerID, "task_id", job.TaskID, "panic", p)
			_ = tasks.NewTracker(q.tasks, job.TaskID).Fail(context.Background(), fmt.Errorf("internal error: %v", p))
		}
	}()

	q.logger.Info("job started", "worker", workerID, "task_id", job.TaskID)
	if err := q.runner.Run(q.ctx, job); err != nil {
		q.logger.Warn("job failed", "worker", workerID, "task_id", job.TaskID, "err", err)
		return
	}
	q.logger.Info("job finished", "worker", workerID, "task_id", job.TaskID)
}

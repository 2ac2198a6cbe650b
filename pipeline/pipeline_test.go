package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsagent/classifier"
	"newsagent/deduplication"
	"newsagent/storage"
	"newsagent/tasks"
	"newsagent/types"
)

type fakeCollector struct {
	articles func() []*types.Article
	err      error
	seen     []string
}

func (f *fakeCollector) Collect(context.Context, []string) ([]*types.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.articles()
	for _, a := range out {
		a.Fingerprint = types.Fingerprint(a.Title, a.Content)
	}
	return out, nil
}

func (f *fakeCollector) Remember(_ context.Context, articles []*types.Article) {
	for _, a := range articles {
		if a.ID != 0 {
			f.seen = append(f.seen, a.Link)
		}
	}
}

type fakeArchiver struct {
	got []*types.Article
}

func (f *fakeArchiver) ArchiveArticles(_ context.Context, articles []*types.Article) (int, error) {
	f.got = append(f.got, articles...)
	return len(articles), nil
}

func day(n int) *time.Time {
	t := time.Date(2024, time.March, n, 8, 0, 0, 0, time.UTC)
	return &t
}

func sampleArticles() []*types.Article {
	body := "The central bank raised its benchmark interest rate by a quarter point on Wednesday."
	return []*types.Article{
		{Title: "Fed raises interest rates", Content: body, Link: "https://n.test/1", PublishedAt: day(1)},
		{Title: "Fed Raises Interest Rates", Content: body, Link: "https://n.test/2", PublishedAt: day(2)},
		{Title: "Storm hits the coast", Content: "Thousands lost power overnight.", Link: "https://n.test/3", PublishedAt: day(2)},
	}
}

type harness struct {
	store    *storage.Store
	tasks    *tasks.MemoryStore
	runner   *Runner
	archiver *fakeArchiver
}

func newHarness(t *testing.T, collector Collector) *harness {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dedup, err := deduplication.NewDeduplicator(st, deduplication.Config{})
	if err != nil {
		t.Fatalf("NewDeduplicator: %v", err)
	}
	taskStore := tasks.NewMemoryStore(time.Hour, time.Hour)
	t.Cleanup(taskStore.Close)

	archiver := &fakeArchiver{}
	runner := NewRunner(st, collector, dedup, classifier.NewKeywordClassifier(0.5), taskStore,
		RunnerConfig{Archiver: archiver})
	return &harness{store: st, tasks: taskStore, runner: runner, archiver: archiver}
}

func (h *harness) run(t *testing.T, id string, job Job) (*types.Task, error) {
	t.Helper()
	ctx := context.Background()
	if err := h.tasks.Create(ctx, types.NewTask(id)); err != nil {
		t.Fatalf("Create task: %v", err)
	}
	job.TaskID = id
	runErr := h.runner.Run(ctx, job)
	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get task: %v", err)
	}
	return task, runErr
}

func TestRunnerFullPass(t *testing.T) {
	collector := &fakeCollector{articles: sampleArticles}
	h := newHarness(t, collector)

	task, err := h.run(t, "t1", Job{Feeds: []string{"https://feed"}, Criteria: "interest rates"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if task.Status != types.TaskCompleted {
		t.Fatalf("Status = %s (%s); want completed", task.Status, task.ErrorMessage)
	}
	for i, step := range task.Steps {
		if step.Status != types.TaskCompleted || step.Progress != 100 {
			t.Fatalf("step %d = %+v; want completed at 100", i, step)
		}
	}
	want := types.Statistics{Total: 3, Relevant: 1, Duplicates: 1, UniqueNonRelevant: 1}
	if task.Statistics == nil || *task.Statistics != want {
		t.Fatalf("Statistics = %+v; want %+v", task.Statistics, want)
	}
	if task.ScopeID == nil {
		t.Fatal("task scope not recorded")
	}
	if len(collector.seen) != 3 {
		t.Fatalf("collector remembered %d links; want 3", len(collector.seen))
	}

	if len(h.archiver.got) != 1 || h.archiver.got[0].Link != "https://n.test/1" {
		t.Fatalf("archived %d articles; want the earliest rate story", len(h.archiver.got))
	}

	second, err := h.store.GetArticle(context.Background(), h.archiver.got[0].ID+1)
	if err != nil || second == nil || !second.IsDuplicate || *second.DuplicateOf != h.archiver.got[0].ID {
		t.Fatalf("later copy = %+v, %v; want duplicate of the first", second, err)
	}
}

func TestRunnerNothingNew(t *testing.T) {
	h := newHarness(t, &fakeCollector{articles: sampleArticles})
	if _, err := h.run(t, "first", Job{Feeds: []string{"f"}, Criteria: "rates"}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	task, err := h.run(t, "second", Job{Feeds: []string{"f"}, Criteria: "rates"})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if task.Status != types.TaskCompleted || task.Statistics == nil || task.Statistics.Message == "" {
		t.Fatalf("task = %+v; want completed with a message", task)
	}
	if task.Steps[types.StepCollect].Message != "Saved 0 articles" {
		t.Fatalf("collect message = %q", task.Steps[types.StepCollect].Message)
	}
}

func TestRunnerMissingCriteria(t *testing.T) {
	h := newHarness(t, &fakeCollector{articles: sampleArticles})

	task, err := h.run(t, "t", Job{Feeds: []string{"f"}})
	if !errors.Is(err, classifier.ErrNoCriteria) {
		t.Fatalf("Run error = %v; want ErrNoCriteria", err)
	}
	if task.Status != types.TaskError || task.Steps[types.StepClassify].Status != types.TaskError {
		t.Fatalf("task = %+v; want classify step errored", task)
	}
	if task.Steps[types.StepDeduplicate].Status != types.TaskCompleted {
		t.Fatal("dedup step should complete before classification fails")
	}
}

func TestRunnerCollectFailure(t *testing.T) {
	h := newHarness(t, &fakeCollector{err: errors.New("network down")})

	task, err := h.run(t, "t", Job{Feeds: []string{"f"}, Criteria: "x"})
	if err == nil {
		t.Fatal("Run should fail when collection fails")
	}
	if task.Status != types.TaskError || task.CurrentStep != types.StepCollect || task.ErrorMessage == "" {
		t.Fatalf("task = %+v; want collect step failure", task)
	}
}

type blockingRunner struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
	ran     []string
	panicOn string
}

func (b *blockingRunner) Run(ctx context.Context, job Job) error {
	if job.Criteria == b.panicOn && b.panicOn != "" {
		panic("boom")
	}
	b.started <- job.TaskID
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	b.ran = append(b.ran, job.TaskID)
	b.mu.Unlock()
	return nil
}

func TestQueueSubmitAndClose(t *testing.T) {
	taskStore := tasks.NewMemoryStore(time.Hour, time.Hour)
	defer taskStore.Close()
	runner := &blockingRunner{started: make(chan string, 4), release: make(chan struct{})}
	q := NewQueue(runner, taskStore, 1, 1)
	ctx := context.Background()

	if _, err := q.Submit(ctx, types.ProcessRequest{}); !errors.Is(err, ErrNoFeeds) {
		t.Fatalf("Submit without feeds error = %v; want ErrNoFeeds", err)
	}

	first, err := q.Submit(ctx, types.ProcessRequest{Feeds: []string{"f"}, Criteria: "a"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-runner.started

	second, err := q.Submit(ctx, types.ProcessRequest{Feeds: []string{"f"}, Criteria: "b"})
	if err != nil {
		t.Fatalf("Submit into buffer: %v", err)
	}
	if _, err := q.Submit(ctx, types.ProcessRequest{Feeds: []string{"f"}}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit when full error = %v; want ErrQueueFull", err)
	}
	if taskStore.Len() != 2 {
		t.Fatalf("task store holds %d tasks; rejected submit must not leave one", taskStore.Len())
	}

	if _, err := taskStore.Get(ctx, second); err != nil {
		t.Fatalf("queued task not registered: %v", err)
	}

	close(runner.release)
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(runner.ran) != 2 || runner.ran[0] != first || runner.ran[1] != second {
		t.Fatalf("ran = %v; want [%s %s]", runner.ran, first, second)
	}
	if _, err := q.Submit(ctx, types.ProcessRequest{Feeds: []string{"f"}}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Submit after Close error = %v; want ErrQueueClosed", err)
	}
}

func TestQueueCloseTimeoutCancelsJobs(t *testing.T) {
	taskStore := tasks.NewMemoryStore(time.Hour, time.Hour)
	defer taskStore.Close()
	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{})}
	q := NewQueue(runner, taskStore, 1, 1)

	if _, err := q.Submit(context.Background(), types.ProcessRequest{Feeds: []string{"f"}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close error = %v; want deadline exceeded", err)
	}
	if len(runner.ran) != 0 {
		t.Fatal("canceled job reported as finished")
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	taskStore := tasks.NewMemoryStore(time.Hour, time.Hour)
	defer taskStore.Close()
	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{}), panicOn: "explode"}
	q := NewQueue(runner, taskStore, 1, 1)
	ctx := context.Background()

	id, err := q.Submit(ctx, types.ProcessRequest{Feeds: []string{"f"}, Criteria: "explode"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	close(runner.release)
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	task, err := taskStore.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != types.TaskError {
		t.Fatalf("Status = %s; want error after panic", task.Status)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	unlockB := k.Lock("b")
	unlockB()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a locked key")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-acquired

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Fatalf("%d lock entries left behind", len(k.locks))
	}
}

// Package pipeline runs collection, deduplication and classification passes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsagent/classifier"
	"newsagent/deduplication"
	"newsagent/logging"
	"newsagent/tasks"
	"newsagent/types"

	"github.com/charmbracelet/log"
)

// ArticleStore is the persistence a pass needs.
type ArticleStore interface {
	CreateSession(ctx context.Context, taskID, criteria string, feeds []string) (int64, error)
	SaveArticles(ctx context.Context, articles []*types.Article) (int, error)
	UnprocessedArticles(ctx context.Context, scopeID *int64) ([]*types.Article, error)
	SetClassification(ctx context.Context, id int64, score float64, relevant bool, reason string) error
	Stats(ctx context.Context) (types.Statistics, error)
}

// Collector gathers new articles from feeds.
type Collector interface {
	Collect(ctx context.Context, feedURLs []string) ([]*types.Article, error)
	Remember(ctx context.Context, articles []*types.Article)
}

// Deduplicator finds and marks duplicates within a batch.
type Deduplicator interface {
	FindDuplicates(ctx context.Context, articles []*types.Article, threshold float64, scopeID *int64) (deduplication.Duplicates, error)
	MarkDuplicates(ctx context.Context, dups deduplication.Duplicates) error
}

// Archiver copies relevant articles to long-term storage.
type Archiver interface {
	ArchiveArticles(ctx context.Context, articles []*types.Article) (int, error)
}

// Job is one queued processing pass.
type Job struct {
	TaskID   string
	Feeds    []string
	Criteria string
}

// RunnerConfig controls a pass.
type RunnerConfig struct {
	// Threshold is the similarity threshold; zero uses the deduplicator default.
	Threshold float64
	// GlobalScope compares against every unprocessed article instead of the job's own session.
	GlobalScope bool
	// Archiver is optional.
	Archiver Archiver
}

// Runner executes the complete workflow for one job.
type Runner struct {
	store      ArticleStore
	collector  Collector
	dedup      Deduplicator
	classifier classifier.Classifier
	tasks      tasks.Store
	config     RunnerConfig
	locks      *keyedMutex
	logger     *log.Logger
}

// NewRunner creates a new workflow runner
func NewRunner(store ArticleStore, collector Collector, dedup Deduplicator, cls classifier.Classifier, taskStore tasks.Store, config RunnerConfig) *Runner {
	return &Runner{
		store:      store,
		collector:  collector,
		dedup:      dedup,
		classifier: cls,
		tasks:      taskStore,
		config:     config,
		locks:      newKeyedMutex(),
		logger:     logging.WithPrefix("pipeline"),
	}
}

// Run executes collection, deduplication and classification for job, reporting progress
// to its task. Any failing step fails the task.
func (r *Runner) Run(ctx context.Context, job Job) error {
	tracker := tasks.NewTracker(r.tasks, job.TaskID)
	if err := tracker.Start(ctx); err != nil {
		return err
	}

	if err := r.run(ctx, tracker, job); err != nil {
		if ferr := tracker.Fail(context.WithoutCancel(ctx), err); ferr != nil {
			r.logger.Error("failed to record task failure", "task_id", job.TaskID, "err", ferr)
		}
		return err
	}
	return nil
}

func (r *Runner) run(ctx context.Context, tracker *tasks.Tracker, job Job) error {
	// Step 1: collect
	scopeID, err := r.collect(ctx, tracker, job)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	var scope *int64
	lockKey := "global"
	if !r.config.GlobalScope {
		scope = types.Int64Ptr(scopeID)
		lockKey = fmt.Sprintf("scope:%d", scopeID)
	}

	unlock := r.locks.Lock(lockKey)
	defer unlock()

	batch, err := r.store.UnprocessedArticles(ctx, scope)
	if err != nil {
		return fmt.Errorf("load unprocessed articles: %w", err)
	}
	if len(batch) == 0 {
		stats, err := r.store.Stats(ctx)
		if err != nil {
			return err
		}
		stats.Message = "No articles to process"
		return tracker.Complete(ctx, stats)
	}

	// Step 2: deduplicate
	if err := r.deduplicate(ctx, tracker, batch, scope); err != nil {
		return fmt.Errorf("deduplicate: %w", err)
	}

	unique, err := r.store.UnprocessedArticles(ctx, scope)
	if err != nil {
		return fmt.Errorf("load unique articles: %w", err)
	}

	// Step 3: classify
	if strings.TrimSpace(job.Criteria) == "" {
		_ = tracker.Step(ctx, types.StepClassify, types.TaskError, 0, "Selection criteria not provided")
		return classifier.ErrNoCriteria
	}
	relevant, err := r.classify(ctx, tracker, unique, job.Criteria)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	if r.config.Archiver != nil && len(relevant) > 0 {
		n, err := r.config.Archiver.ArchiveArticles(ctx, relevant)
		if err != nil {
			r.logger.Warn("archive failed", "task_id", job.TaskID, "archived", n, "err", err)
		}
	}

	stats, err := r.store.Stats(ctx)
	if err != nil {
		return err
	}
	return tracker.Complete(ctx, stats)
}

func (r *Runner) collect(ctx context.Context, tracker *tasks.Tracker, job Job) (int64, error) {
	if err := tracker.Step(ctx, types.StepCollect, types.TaskRunning, 0,
		fmt.Sprintf("Collecting from %d feeds...", len(job.Feeds))); err != nil {
		return 0, err
	}

	scopeID, err := r.store.CreateSession(ctx, job.TaskID, job.Criteria, job.Feeds)
	if err != nil {
		return 0, err
	}
	if err := tracker.SetScope(ctx, scopeID); err != nil {
		return 0, err
	}

	articles, err := r.collector.Collect(ctx, job.Feeds)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return scopeID, tracker.Step(ctx, types.StepCollect, types.TaskCompleted, 100, "No new articles found")
	}

	for _, a := range articles {
		a.ScopeID = types.Int64Ptr(scopeID)
	}
	saved, err := r.store.SaveArticles(ctx, articles)
	if err != nil {
		return 0, err
	}
	r.collector.Remember(ctx, articles)

	return scopeID, tracker.Step(ctx, types.StepCollect, types.TaskCompleted, 100,
		fmt.Sprintf("Saved %d articles", saved))
}

func (r *Runner) deduplicate(ctx context.Context, tracker *tasks.Tracker, batch []*types.Article, scope *int64) error {
	if err := tracker.Step(ctx, types.StepDeduplicate, types.TaskRunning, 0,
		fmt.Sprintf("Analyzing %d articles...", len(batch))); err != nil {
		return err
	}

	dups, err := r.dedup.FindDuplicates(ctx, batch, r.config.Threshold, scope)
	if err != nil {
		return err
	}
	if len(dups) == 0 {
		return tracker.Step(ctx, types.StepDeduplicate, types.TaskCompleted, 100, "No duplicates found")
	}

	if err := tracker.Step(ctx, types.StepDeduplicate, types.TaskRunning, 50,
		fmt.Sprintf("Found %d duplicates", len(dups))); err != nil {
		return err
	}
	if err := r.dedup.MarkDuplicates(ctx, dups); err != nil {
		return err
	}
	return tracker.Step(ctx, types.StepDeduplicate, types.TaskCompleted, 100,
		fmt.Sprintf("Marked %d duplicates", len(dups)))
}

func (r *Runner) classify(ctx context.Context, tracker *tasks.Tracker, articles []*types.Article, criteria string) ([]*types.Article, error) {
	if err := tracker.Step(ctx, types.StepClassify, types.TaskRunning, 0,
		fmt.Sprintf("Classifying %d articles by: %s", len(articles), truncate(criteria, 50))); err != nil {
		return nil, err
	}

	var relevant []*types.Article
	total := len(articles)
	for i, a := range articles {
		res, err := r.classifier.Classify(ctx, a, criteria)
		if err != nil {
			if errors.Is(err, classifier.ErrNoCriteria) || ctx.Err() != nil {
				return nil, err
			}
			return nil, fmt.Errorf("article %d: %w", a.ID, err)
		}
		if err := r.store.SetClassification(ctx, a.ID, res.Score, res.Relevant, res.Reason); err != nil {
			return nil, err
		}
		a.RelevanceScore = &res.Score
		a.IsRelevant = &res.Relevant
		a.ClassificationReason = res.Reason
		if res.Relevant {
			relevant = append(relevant, a)
		}

		progress := (i + 1) * 100 / total
		if err := tracker.Step(ctx, types.StepClassify, types.TaskRunning, progress,
			fmt.Sprintf("Processed %d of %d articles", i+1, total)); err != nil {
			return nil, err
		}
	}

	return relevant, tracker.Step(ctx, types.StepClassify, types.TaskCompleted, 100,
		fmt.Sprintf("Classified %d articles", total))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

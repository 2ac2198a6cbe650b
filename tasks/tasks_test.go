package tasks

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"newsagent/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Hour)
	defer store.Close()
	ctx := context.Background()

	task := types.NewTask("t1")
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, task); !errors.Is(err, ErrExists) {
		t.Fatalf("second Create error = %v; want ErrExists", err)
	}

	if err := store.Update(ctx, "t1", func(t *types.Task) { t.Status = types.TaskRunning }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.TaskRunning {
		t.Fatalf("Status = %s; want running", got.Status)
	}

	got.Status = types.TaskError
	again, _ := store.Get(ctx, "t1")
	if again.Status != types.TaskRunning {
		t.Fatal("mutating a returned task changed the stored one")
	}

	if err := store.Update(ctx, "missing", func(*types.Task) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update(missing) error = %v; want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete error = %v; want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute, time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Create(ctx, types.NewTask("old")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	now = now.Add(30 * time.Second)
	if err := store.Create(ctx, types.NewTask("fresh")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = now.Add(45 * time.Second)
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(old) error = %v; want ErrNotFound after TTL", err)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("Get(fresh): %v", err)
	}

	if removed := store.sweep(); removed != 1 {
		t.Fatalf("sweep removed %d; want 1", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d; want 1", store.Len())
	}
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Hour)
	defer store.Close()
	ctx := context.Background()
	_ = store.Create(ctx, types.NewTask("c"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, "c", func(t *types.Task) { t.CurrentStep++ })
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, "c")
	if got.CurrentStep != 50 {
		t.Fatalf("CurrentStep = %d; want 50", got.CurrentStep)
	}
}

func TestTracker(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Hour)
	defer store.Close()
	ctx := context.Background()
	_ = store.Create(ctx, types.NewTask("tr"))

	tr := NewTracker(store, "tr")
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = tr.SetScope(ctx, 9)
	_ = tr.Step(ctx, types.StepCollect, types.TaskCompleted, 100, "saved 3 articles")
	_ = tr.Step(ctx, types.StepDeduplicate, types.TaskRunning, 50, "found 1 duplicate")
	if err := tr.Fail(ctx, errors.New("boom")); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, _ := store.Get(ctx, "tr")
	if got.Status != types.TaskError || got.ErrorMessage != "boom" {
		t.Fatalf("task = %+v; want error state", got)
	}
	if got.CurrentStep != types.StepDeduplicate || got.Steps[types.StepDeduplicate].Status != types.TaskError {
		t.Fatalf("current step = %d %+v; want dedup step errored", got.CurrentStep, got.Steps[got.CurrentStep])
	}
	if got.Steps[types.StepCollect].Status != types.TaskCompleted {
		t.Fatal("completed step was changed by Fail")
	}
	if got.ScopeID == nil || *got.ScopeID != 9 {
		t.Fatalf("ScopeID = %v; want 9", got.ScopeID)
	}
	if len(got.Logs) == 0 {
		t.Fatal("no logs recorded")
	}

	if err := NewTracker(store, "nope").Start(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Start(unknown) error = %v; want ErrNotFound", err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	store := NewRedisStore(client, "newsagent:test:"+uuid.NewString()+":", time.Minute)
	task := types.NewTask("r1")
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer store.Delete(ctx, "r1")

	if err := store.Create(ctx, task); !errors.Is(err, ErrExists) {
		t.Fatalf("second Create error = %v; want ErrExists", err)
	}
	if err := store.Update(ctx, "r1", func(t *types.Task) { t.Status = types.TaskCompleted }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Get(ctx, "r1")
	if err != nil || got.Status != types.TaskCompleted {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v; want ErrNotFound", err)
	}
}

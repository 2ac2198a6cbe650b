package tasks

import (
	"context"
	"sync"
	"time"

	"newsagent/types"
)

// MemoryStore keeps tasks in process memory. A janitor goroutine drops tasks
// that have not been updated for longer than the TTL.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
	ttl   time.Duration
	now   func() time.Time

	stop chan struct{}
	done chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore starts a store sweeping expired tasks every interval.
func NewMemoryStore(ttl, interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = time.Minute
	}
	m := &MemoryStore{
		tasks: make(map[string]*types.Task),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go m.janitor(interval)
	return m
}

func (m *MemoryStore) Create(_ context.Context, task *types.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; ok {
		return ErrExists
	}
	stored := task.Clone()
	stored.UpdatedAt = m.now()
	m.tasks[task.ID] = stored
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok || m.expired(task) {
		return nil, ErrNotFound
	}
	return task.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*types.Task)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || m.expired(task) {
		return ErrNotFound
	}
	fn(task)
	task.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// Len returns the number of tasks held, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// Close stops the janitor.
func (m *MemoryStore) Close() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}

func (m *MemoryStore) expired(task *types.Task) bool {
	return m.ttl > 0 && m.now().Sub(task.UpdatedAt) > m.ttl
}

func (m *MemoryStore) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, task := range m.tasks {
		if m.expired(task) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

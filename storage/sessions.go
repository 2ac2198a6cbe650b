package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CreateSession records a collection session and returns its id, which scopes the articles it collects.
func (s *Store) CreateSession(ctx context.Context, taskID, criteria string, feeds []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (task_id, criteria, feeds, created_at) VALUES (?, ?, ?, ?)",
		taskID, criteria, strings.Join(feeds, "\n"), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

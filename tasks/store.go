// Package tasks keeps the observable state of processing tasks.
package tasks

import (
	"context"
	"errors"

	"newsagent/types"
)

var (
	// ErrNotFound is returned for unknown or expired task ids.
	ErrNotFound = errors.New("task not found")
	// ErrExists is returned when creating a task whose id is taken.
	ErrExists = errors.New("task already exists")
)

// Store persists tasks. Get returns a copy; changes go through Update.
type Store interface {
	Create(ctx context.Context, task *types.Task) error
	Get(ctx context.Context, id string) (*types.Task, error)
	// Update applies fn to the stored task atomically and refreshes its expiry.
	Update(ctx context.Context, id string, fn func(*types.Task)) error
	Delete(ctx context.Context, id string) error
}

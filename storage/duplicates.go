package storage

import (
	"context"
	"database/sql"
	"fmt"

	"newsagent/deduplication"
	"newsagent/types"
)

var _ deduplication.Store = (*Store)(nil)

// UpdateDuplicates runs fn inside one write transaction and commits only if fn succeeds.
func (s *Store) UpdateDuplicates(ctx context.Context, fn func(tx deduplication.DuplicateWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&duplicateTx{tx: tx})
	})
}

type duplicateTx struct {
	tx *sql.Tx
}

func (d *duplicateTx) GetArticle(ctx context.Context, id int64) (*types.Article, error) {
	return getArticle(ctx, d.tx, id)
}

func (d *duplicateTx) SetDuplicate(ctx context.Context, id, canonicalID int64) error {
	_, err := d.tx.ExecContext(ctx, "UPDATE articles SET is_duplicate = 1, duplicate_of = ? WHERE id = ?", canonicalID, id)
	if err != nil {
		return fmt.Errorf("update article %d: %w", id, err)
	}
	return nil
}

func (d *duplicateTx) RepointDuplicates(ctx context.Context, from, to int64) (int64, error) {
	res, err := d.tx.ExecContext(ctx,
		"UPDATE articles SET duplicate_of = ? WHERE is_duplicate = 1 AND duplicate_of = ? AND id != ?", to, from, to)
	if err != nil {
		return 0, fmt.Errorf("repoint duplicates of %d: %w", from, err)
	}
	return res.RowsAffected()
}

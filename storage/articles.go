package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsagent/types"
)

const articleColumns = `id, title, content, link, source, content_hash, published_at, collected_at, scope_id,
	is_duplicate, duplicate_of, relevance_score, is_relevant, classification_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*types.Article, error) {
	var (
		a                        types.Article
		content, source, hash    sql.NullString
		reason                   sql.NullString
		publishedAt, scopeID     sql.NullInt64
		duplicateOf, isRelevant  sql.NullInt64
		collectedAt, isDuplicate int64
		score                    sql.NullFloat64
	)

	if err := row.Scan(&a.ID, &a.Title, &content, &a.Link, &source, &hash, &publishedAt, &collectedAt,
		&scopeID, &isDuplicate, &duplicateOf, &score, &isRelevant, &reason); err != nil {
		return nil, err
	}

	a.Content = content.String
	a.Source = source.String
	a.Fingerprint = hash.String
	a.ClassificationReason = reason.String
	a.CollectedAt = time.Unix(collectedAt, 0).UTC()
	a.IsDuplicate = isDuplicate == 1
	if publishedAt.Valid {
		a.PublishedAt = types.TimePtr(time.Unix(publishedAt.Int64, 0).UTC())
	}
	if scopeID.Valid {
		a.ScopeID = types.Int64Ptr(scopeID.Int64)
	}
	if duplicateOf.Valid {
		a.DuplicateOf = types.Int64Ptr(duplicateOf.Int64)
	}
	if score.Valid {
		v := score.Float64
		a.RelevanceScore = &v
	}
	if isRelevant.Valid {
		v := isRelevant.Int64 == 1
		a.IsRelevant = &v
	}
	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]types.Article, error) {
	defer rows.Close()

	var out []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// SaveArticles inserts articles and sets the ID of every newly stored one.
// Articles whose link is already stored are left with ID 0. Returns the number inserted.
func (s *Store) SaveArticles(ctx context.Context, articles []*types.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(articles) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO articles (
				title, content, link, source, content_hash, published_at, collected_at, scope_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range articles {
			if a == nil || a.Link == "" {
				continue
			}
			if a.CollectedAt.IsZero() {
				a.CollectedAt = time.Now().UTC()
			}

			res, err := stmt.ExecContext(ctx, a.Title, a.Content, a.Link, a.Source, a.Fingerprint,
				nullableUnix(a.PublishedAt), a.CollectedAt.Unix(), nullableInt64(a.ScopeID))
			if err != nil {
				return fmt.Errorf("insert article %q: %w", a.Link, err)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				continue
			}

			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			a.ID = id
			inserted++
		}
		return nil
	})
	if err != nil {
		for _, a := range articles {
			if a != nil {
				a.ID = 0
			}
		}
		return 0, err
	}
	return inserted, nil
}

// LinkExists reports whether an article with this link is stored.
func (s *Store) LinkExists(ctx context.Context, link string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM articles WHERE link = ? LIMIT 1", link).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetArticle returns the article with id, or nil when it does not exist.
func (s *Store) GetArticle(ctx context.Context, id int64) (*types.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getArticle(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getArticle(ctx context.Context, q queryRower, id int64) (*types.Article, error) {
	row := q.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindByFingerprint returns non-duplicate articles with the given content hash, excluding excludeID.
// A non-nil scopeID restricts the search to that scope. Earliest published come first, undated last.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string, excludeID int64, scopeID *int64) ([]types.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + articleColumns + " FROM articles WHERE content_hash = ? AND id != ? AND is_duplicate = 0"
	args := []any{fingerprint, excludeID}
	if scopeID != nil {
		query += " AND scope_id = ?"
		args = append(args, *scopeID)
	}
	query += " ORDER BY published_at IS NULL, published_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by fingerprint: %w", err)
	}
	return scanArticles(rows)
}

// UnprocessedArticles returns articles that are neither duplicates nor classified yet, oldest id first.
// A nil scopeID selects every scope.
func (s *Store) UnprocessedArticles(ctx context.Context, scopeID *int64) ([]*types.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + articleColumns + " FROM articles WHERE is_duplicate = 0 AND relevance_score IS NULL"
	var args []any
	if scopeID != nil {
		query += " AND scope_id = ?"
		args = append(args, *scopeID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed: %w", err)
	}
	list, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Article, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

// GetArticlesByIDs returns the stored articles among ids, in ascending id order.
func (s *Store) GetArticlesByIDs(ctx context.Context, ids []int64) ([]*types.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE id IN ("+placeholders+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query by ids: %w", err)
	}
	list, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Article, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

// SetClassification stores the relevance verdict for an article.
func (s *Store) SetClassification(ctx context.Context, id int64, score float64, relevant bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE articles SET relevance_score = ?, is_relevant = ?, classification_reason = ? WHERE id = ?",
		score, boolToInt(relevant), reason, id)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("article %d not found", id)
	}
	return nil
}

// Results returns non-duplicate articles, newest first. limit <= 0 returns all of them.
func (s *Store) Results(ctx context.Context, limit int) ([]types.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + articleColumns + ` FROM articles WHERE is_duplicate = 0
		ORDER BY COALESCE(published_at, collected_at) DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	return scanArticles(rows)
}

// Stats summarizes the stored articles.
func (s *Store) Stats(ctx context.Context) (types.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats types.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_relevant = 1 AND is_duplicate = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_duplicate = 1 THEN 1 ELSE 0 END), 0)
		FROM articles
	`).Scan(&stats.Total, &stats.Relevant, &stats.Duplicates)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	stats.UniqueNonRelevant = stats.Total - stats.Relevant - stats.Duplicates
	return stats, nil
}

// DuplicateCount returns the number of articles flagged as duplicates.
func (s *Store) DuplicateCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE is_duplicate = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("count duplicates: %w", err)
	}
	return n, nil
}

// Clear deletes every article and session, returning the number of articles removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM articles")
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		_, err = tx.ExecContext(ctx, "DELETE FROM sessions")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear database: %w", err)
	}
	return deleted, nil
}

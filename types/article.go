package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Article represents a collected news item and the processing state attached to it
type Article struct {
	// ID is assigned by storage; zero means the article has not been persisted yet.
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Link        string     `json:"link"`
	Source      string     `json:"source,omitempty"`
	Fingerprint string     `json:"content_hash,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CollectedAt time.Time  `json:"collected_at"`
	ScopeID     *int64     `json:"scope_id,omitempty"`

	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf *int64 `json:"duplicate_of,omitempty"`

	RelevanceScore       *float64 `json:"relevance_score,omitempty"`
	IsRelevant           *bool    `json:"is_relevant,omitempty"`
	ClassificationReason string   `json:"classification_reason,omitempty"`

	// ExtractionError is set when full-text extraction was attempted and failed.
	ExtractionError string `json:"extraction_error,omitempty"`
}

// FeedResult is the outcome of fetching a single feed
type FeedResult struct {
	FeedURL      string     `json:"feed_url"`
	Source       string     `json:"source"`
	FetchedAt    time.Time  `json:"fetched_at"`
	ArticleCount int        `json:"article_count"`
	Articles     []*Article `json:"articles"`
}

// Fingerprint returns the sha256 hex digest of the lowercased, trimmed concatenation of title and content.
func Fingerprint(title, content string) string {
	normalized := strings.ToLower(strings.TrimSpace(title + content))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// InScope reports whether the article belongs to the given scope. A nil scope matches everything.
func (a *Article) InScope(scopeID *int64) bool {
	if scopeID == nil {
		return true
	}
	return a.ScopeID != nil && *a.ScopeID == *scopeID
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 { return &v }

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time { return &t }

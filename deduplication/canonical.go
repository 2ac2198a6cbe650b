package deduplication

import "newsagent/types"

// Resolve decides which of two duplicate articles is canonical. The earlier published article wins;
// when either timestamp is missing or both are equal, a is canonical and b is the duplicate.
func Resolve(a, b *types.Article) (canonicalID, duplicateID int64) {
	if a.PublishedAt != nil && b.PublishedAt != nil && b.PublishedAt.Before(*a.PublishedAt) {
		return b.ID, a.ID
	}
	return a.ID, b.ID
}

package deduplication

import (
	"context"
	"fmt"
)

// MarkDuplicates flags every key of dups as a duplicate of its canonical article in one transaction.
// Stored duplicates of a newly marked article are moved onto its canonical, so no row is left pointing
// at a duplicate. Nothing is written when any update fails. Applying the same mapping twice leaves the same state.
func (d *Deduplicator) MarkDuplicates(ctx context.Context, dups Duplicates) error {
	if len(dups) == 0 {
		return nil
	}
	if err := dups.Validate(); err != nil {
		return err
	}

	marked := 0
	err := d.store.UpdateDuplicates(ctx, func(tx DuplicateWriter) error {
		for _, id := range dups.Keys() {
			canonicalID := dups[id]

			canonical, err := tx.GetArticle(ctx, canonicalID)
			if err != nil {
				return fmt.Errorf("failed to load canonical article %d: %w", canonicalID, err)
			}
			if canonical == nil {
				return fmt.Errorf("canonical article %d not found", canonicalID)
			}
			if canonical.IsDuplicate {
				return fmt.Errorf("%w: article %d", ErrDanglingCanonical, canonicalID)
			}

			article, err := tx.GetArticle(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load article %d: %w", id, err)
			}
			if article == nil {
				d.logger.Warn("article to mark not found, skipping", "id", id)
				continue
			}

			if err := tx.SetDuplicate(ctx, id, canonicalID); err != nil {
				return fmt.Errorf("failed to mark article %d: %w", id, err)
			}
			moved, err := tx.RepointDuplicates(ctx, id, canonicalID)
			if err != nil {
				return fmt.Errorf("failed to repoint duplicates of article %d: %w", id, err)
			}
			if moved > 0 {
				d.logger.Debug("repointed stored duplicates", "from", id, "to", canonicalID, "count", moved)
			}
			marked++
		}
		return nil
	})
	if err != nil {
		d.logger.Error("marking duplicates rolled back", "count", len(dups), "err", err)
		return &StorageError{Op: "mark duplicates", Err: err}
	}

	d.logger.Info("marked duplicates", "count", marked)
	return nil
}

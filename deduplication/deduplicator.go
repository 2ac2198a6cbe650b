package deduplication

import (
	"context"
	"fmt"

	"newsagent/logging"
	"newsagent/types"

	"github.com/charmbracelet/log"
)

const (
	// SimilarityThreshold is the default minimum similarity for two articles to be duplicates
	SimilarityThreshold = 0.85
	// TitleFloor is the title similarity required before body similarity is considered
	TitleFloor = 0.7
)

// FingerprintLookup finds persisted, non-duplicate articles sharing a content fingerprint.
// Results exclude excludeID, are restricted to scopeID when it is non-nil, and come back in a stable order.
type FingerprintLookup interface {
	FindByFingerprint(ctx context.Context, fingerprint string, excludeID int64, scopeID *int64) ([]types.Article, error)
}

// DuplicateWriter is the transactional view the marker writes through
type DuplicateWriter interface {
	// GetArticle returns nil without error when the article does not exist
	GetArticle(ctx context.Context, id int64) (*types.Article, error)
	SetDuplicate(ctx context.Context, id, canonicalID int64) error
	// RepointDuplicates moves every stored duplicate of from onto to and returns how many rows moved
	RepointDuplicates(ctx context.Context, from, to int64) (int64, error)
}

// Store is the storage collaborator of the deduplicator.
// UpdateDuplicates must run fn in a single transaction, committing when fn returns nil and rolling back otherwise.
type Store interface {
	FingerprintLookup
	UpdateDuplicates(ctx context.Context, fn func(tx DuplicateWriter) error) error
}

// Config holds configuration for the deduplicator
type Config struct {
	SimilarityThreshold float64 // Default: 0.85
	// Scorer compares titles and bodies. Default: Similarity
	Scorer Scorer
	Logger *log.Logger
}

// Deduplicator finds exact and near duplicate articles within a batch and records them in storage
type Deduplicator struct {
	store     Store
	threshold float64
	score     Scorer
	logger    *log.Logger
}

// NewDeduplicator creates a deduplicator backed by store
func NewDeduplicator(store Store, config Config) (*Deduplicator, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	cfg := applyConfigDefaults(config)
	if cfg.SimilarityThreshold > 1 || cfg.SimilarityThreshold < 0 {
		return nil, ErrInvalidThreshold
	}

	return &Deduplicator{
		store:     store,
		threshold: cfg.SimilarityThreshold,
		score:     cfg.Scorer,
		logger:    cfg.Logger,
	}, nil
}

// Threshold returns the default similarity threshold
func (d *Deduplicator) Threshold() float64 { return d.threshold }

// FindDuplicates runs exact fingerprint matching and then pairwise near-duplicate matching over articles.
// A threshold <= 0 selects the configured default. A non-nil scopeID restricts fingerprint matching to that
// scope; the pairwise pass compares every article given. Articles already flagged as duplicates are skipped.
// The returned mapping is flattened and can be passed to MarkDuplicates as is.
func (d *Deduplicator) FindDuplicates(ctx context.Context, articles []*types.Article, threshold float64, scopeID *int64) (Duplicates, error) {
	if threshold <= 0 {
		threshold = d.threshold
	}
	if threshold > 1 {
		return nil, ErrInvalidThreshold
	}

	if scopeID == nil {
		d.logger.Warn("no comparison scope set, matching against the full corpus")
	}

	exact, err := d.FindExactDuplicates(ctx, articles, scopeID)
	if err != nil {
		return nil, err
	}
	near := d.FindNearDuplicates(articles, threshold, exact)

	result := make(Duplicates, len(exact)+len(near))
	for k, v := range exact {
		result[k] = v
	}
	for k, v := range near {
		result[k] = v
	}

	if err := result.Flatten(); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	d.logger.Info("duplicate detection finished",
		"articles", len(articles), "exact", len(exact), "near", len(near), "threshold", threshold)
	return result, nil
}

// FindExactDuplicates matches articles by content fingerprint against storage.
// When the match is part of the same batch the canonical side is chosen by Resolve in batch order;
// otherwise the stored article is canonical.
func (d *Deduplicator) FindExactDuplicates(ctx context.Context, articles []*types.Article, scopeID *int64) (Duplicates, error) {
	dups := Duplicates{}

	position := make(map[int64]int, len(articles))
	for i, a := range articles {
		if a == nil || a.ID == 0 {
			continue
		}
		if _, ok := position[a.ID]; !ok {
			position[a.ID] = i
		}
	}

	for i, a := range articles {
		if !d.hasIdentity(a) {
			continue
		}
		if a.Fingerprint == "" {
			d.logger.Debug("skipping article without fingerprint", "id", a.ID)
			continue
		}
		if !a.InScope(scopeID) || dups.Has(a.ID) {
			continue
		}

		matches, err := d.store.FindByFingerprint(ctx, a.Fingerprint, a.ID, scopeID)
		if err != nil {
			return nil, &StorageError{Op: "fingerprint lookup", Err: err}
		}

		for j := range matches {
			match := &matches[j]
			if match.ID == a.ID || dups.Has(match.ID) {
				continue
			}

			canonical, duplicate := match.ID, a.ID
			if pos, ok := position[match.ID]; ok {
				member := articles[pos]
				if pos < i {
					canonical, duplicate = Resolve(member, a)
				} else {
					canonical, duplicate = Resolve(a, member)
				}
			}

			dups[duplicate] = canonical
			d.logger.Debug("exact duplicate", "id", duplicate, "canonical", canonical)
			break
		}
	}

	return dups, nil
}

// FindNearDuplicates compares every remaining pair in input order and records near duplicates.
// Articles that are keys of exclude, or that become duplicates during the pass, are not compared again.
func (d *Deduplicator) FindNearDuplicates(articles []*types.Article, threshold float64, exclude Duplicates) Duplicates {
	dups := Duplicates{}
	marked := func(id int64) bool {
		return exclude.Has(id) || dups.Has(id)
	}

	candidates := make([]*types.Article, 0, len(articles))
	for _, a := range articles {
		if d.hasIdentity(a) && !exclude.Has(a.ID) {
			candidates = append(candidates, a)
		}
	}

	for i := 0; i < len(candidates); i++ {
		a := candidates[i]
		if marked(a.ID) {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]
			if b.ID == a.ID || marked(b.ID) {
				continue
			}
			if !d.isNearDuplicate(a, b, threshold) {
				continue
			}

			canonical, duplicate := Resolve(a, b)
			dups[duplicate] = canonical
			d.logger.Debug("near duplicate", "id", duplicate, "canonical", canonical)
			if duplicate == a.ID {
				break
			}
		}
	}

	return dups
}

// isNearDuplicate applies the decision rule: titles above threshold, or titles above the floor with bodies above threshold.
func (d *Deduplicator) isNearDuplicate(a, b *types.Article, threshold float64) bool {
	titleSim := d.score(a.Title, b.Title)
	if titleSim >= threshold {
		return true
	}
	if titleSim < TitleFloor {
		return false
	}
	return d.score(a.Content, b.Content) >= threshold
}

func (d *Deduplicator) hasIdentity(a *types.Article) bool {
	if a == nil {
		return false
	}
	if a.ID == 0 {
		d.logger.Debug("skipping article without id", "title", a.Title)
		return false
	}
	if a.IsDuplicate {
		d.logger.Debug("skipping article already marked as duplicate", "id", a.ID)
		return false
	}
	return true
}

func applyConfigDefaults(config Config) Config {
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = SimilarityThreshold
	}
	if config.Scorer == nil {
		config.Scorer = Similarity
	}
	if config.Logger == nil {
		config.Logger = logging.WithPrefix("dedup")
	}
	return config
}

// Package rssfeeds fetches RSS/Atom feeds and turns new items into articles.
package rssfeeds

import (
	"context"
	"fmt"
	"net/http"

	"newsagent/logging"
	"newsagent/types"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// LinkStore reports whether a link has already been stored.
type LinkStore interface {
	LinkExists(ctx context.Context, link string) (bool, error)
}

// CollectorConfig controls feed collection.
type CollectorConfig struct {
	MaxItems    int
	Concurrency int
	// Extract enables full-text extraction of each new article.
	Extract    bool
	HTTPClient *http.Client
	// Filter is an optional pre-check in front of the store.
	Filter LinkFilter
}

// Collector gathers new articles from a set of feeds.
type Collector struct {
	store     LinkStore
	parser    *gofeed.Parser
	extractor *Extractor
	config    CollectorConfig
	logger    *log.Logger
}

// NewCollector creates a collector checking links against store.
func NewCollector(store LinkStore, config CollectorConfig) *Collector {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	c := &Collector{
		store:  store,
		parser: newParser(config.HTTPClient),
		config: config,
		logger: logging.WithPrefix("collect"),
	}
	if config.Extract {
		c.extractor = NewExtractor(config.HTTPClient, WorkerCount)
	}
	return c
}

// Collect fetches every feed and returns the articles whose links are not stored yet, with
// fingerprints computed. A feed that fails to load is logged and skipped.
func (c *Collector) Collect(ctx context.Context, feedURLs []string) ([]*types.Article, error) {
	results := make([]*types.FeedResult, len(feedURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, feedURL := range feedURLs {
		g.Go(func() error {
			result, err := fetchFeed(gctx, c.parser, feedURL, c.config.MaxItems)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("skipping feed", "url", feedURL, "err", err)
				return nil
			}
			c.logger.Info("fetched feed", "url", feedURL, "source", result.Source, "items", result.ArticleCount)
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var fresh []*types.Article
	for _, result := range results {
		if result == nil {
			continue
		}
		for _, article := range result.Articles {
			key := normalizeURL(article.Link)
			if seen[key] {
				continue
			}
			seen[key] = true

			known, err := c.known(ctx, article.Link)
			if err != nil {
				return nil, err
			}
			if !known {
				fresh = append(fresh, article)
			}
		}
	}

	if c.extractor != nil && len(fresh) > 0 {
		c.extractor.ExtractAll(ctx, fresh)
	}
	for _, article := range fresh {
		article.Fingerprint = types.Fingerprint(article.Title, article.Content)
	}

	c.logger.Info("collected articles", "feeds", len(feedURLs), "new", len(fresh))
	return fresh, nil
}

// Remember records stored links in the filter so later collections can skip them cheaply.
func (c *Collector) Remember(ctx context.Context, articles []*types.Article) {
	if c.config.Filter == nil {
		return
	}
	for _, article := range articles {
		if article.ID == 0 {
			continue
		}
		if err := c.config.Filter.Add(ctx, article.Link); err != nil {
			c.logger.Warn("bloom add failed", "link", article.Link, "err", err)
			return
		}
	}
}

func (c *Collector) known(ctx context.Context, link string) (bool, error) {
	if c.config.Filter != nil {
		maybe, err := c.config.Filter.Exists(ctx, link)
		switch {
		case err != nil:
			c.logger.Warn("bloom check failed, using storage", "err", err)
		case !maybe:
			return false, nil
		}
	}

	exists, err := c.store.LinkExists(ctx, link)
	if err != nil {
		return false, fmt.Errorf("failed to check link %s: %w", link, err)
	}
	return exists, nil
}

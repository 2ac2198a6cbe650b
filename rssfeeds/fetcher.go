package rssfeeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsagent/types"

	"github.com/mmcdole/gofeed"
)

const fetchTimeout = 30 * time.Second

// FetchFeed retrieves and parses an RSS/Atom feed, returning at most maxCount articles.
// Items without a link are dropped. maxCount <= 0 returns every item.
func FetchFeed(ctx context.Context, feedURL string, maxCount int) (*types.FeedResult, error) {
	return fetchFeed(ctx, newParser(nil), feedURL, maxCount)
}

func fetchFeed(ctx context.Context, parser *gofeed.Parser, feedURL string, maxCount int) (*types.FeedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}

	count := len(feed.Items)
	if maxCount > 0 {
		count = min(count, maxCount)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = feedURL
	}

	now := time.Now().UTC()
	result := &types.FeedResult{
		FeedURL:   feedURL,
		Source:    source,
		FetchedAt: now,
		Articles:  make([]*types.Article, 0, count),
	}

	for _, item := range feed.Items[:count] {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		content := item.Description
		if content == "" {
			content = item.Content
		}

		var publishedAt *time.Time
		if item.PublishedParsed != nil {
			publishedAt = types.TimePtr(item.PublishedParsed.UTC())
		} else if item.UpdatedParsed != nil {
			publishedAt = types.TimePtr(item.UpdatedParsed.UTC())
		}

		result.Articles = append(result.Articles, &types.Article{
			Title:       strings.TrimSpace(item.Title),
			Content:     strings.TrimSpace(content),
			Link:        link,
			Source:      source,
			PublishedAt: publishedAt,
			CollectedAt: now,
		})
	}

	result.ArticleCount = len(result.Articles)
	return result, nil
}

func newParser(client *http.Client) *gofeed.Parser {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	parser.UserAgent = "newsagent/1.0"
	return parser
}

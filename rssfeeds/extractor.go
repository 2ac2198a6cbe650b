package rssfeeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"newsagent/logging"
	"newsagent/types"

	"github.com/charmbracelet/log"
	readability "github.com/go-shiori/go-readability"
)

const (
	WorkerCount      = 5
	extractorTimeout = 30 * time.Second
)

// Extractor replaces feed summaries with the readable text of the linked page.
type Extractor struct {
	client  *http.Client
	workers int
	logger  *log.Logger
}

// NewExtractor returns an extractor using client (http.DefaultClient when nil) and workers goroutines.
func NewExtractor(client *http.Client, workers int) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: extractorTimeout}
	}
	if workers <= 0 {
		workers = WorkerCount
	}
	return &Extractor{client: client, workers: workers, logger: logging.WithPrefix("extract")}
}

// ExtractAll fetches and extracts full content for all articles using a worker pool.
// Failures are recorded on the article and never abort the batch.
func (e *Extractor) ExtractAll(ctx context.Context, articles []*types.Article) {
	var wg sync.WaitGroup
	articleChan := make(chan *types.Article)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for article := range articleChan {
				if err := e.extract(ctx, article); err != nil {
					article.ExtractionError = err.Error()
					e.logger.Warn("extraction failed", "worker", workerID, "link", article.Link, "err", err)
				}
			}
		}(i)
	}

	for _, article := range articles {
		select {
		case articleChan <- article:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(articleChan)
	wg.Wait()
}

func (e *Extractor) extract(ctx context.Context, article *types.Article) error {
	if article.Link == "" {
		return fmt.Errorf("article link is empty")
	}
	pageURL, err := url.Parse(article.Link)
	if err != nil {
		return fmt.Errorf("invalid article link: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, extractorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, article.Link, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	extracted, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}

	text := strings.TrimSpace(extracted.TextContent)
	if text == "" {
		return fmt.Errorf("no readable content")
	}
	article.Content = text
	e.logger.Debug("extracted", "title", article.Title)
	return nil
}

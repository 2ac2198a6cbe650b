package rssfeeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"newsagent/types"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>%s</title>
  <link>https://example.com</link>
  <description>test feed</description>
  %s
</channel>
</rss>`

func rssItem(title, link, description, pubDate string) string {
	var b strings.Builder
	b.WriteString("<item>")
	fmt.Fprintf(&b, "<title>%s</title>", title)
	if link != "" {
		fmt.Fprintf(&b, "<link>%s</link>", link)
	}
	if description != "" {
		fmt.Fprintf(&b, "<description>%s</description>", description)
	}
	if pubDate != "" {
		fmt.Fprintf(&b, "<pubDate>%s</pubDate>", pubDate)
	}
	b.WriteString("</item>")
	return b.String()
}

func feedServer(t *testing.T, feeds map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := feeds[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeLinkStore struct {
	mu     sync.Mutex
	links  map[string]bool
	checks int
}

func (f *fakeLinkStore) LinkExists(_ context.Context, link string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.links[link], nil
}

type fakeFilter struct {
	present map[string]bool
	added   []string
}

func (f *fakeFilter) Exists(_ context.Context, link string) (bool, error) {
	return f.present[link], nil
}

func (f *fakeFilter) Add(_ context.Context, link string) error {
	f.added = append(f.added, link)
	return nil
}

func TestFetchFeed(t *testing.T) {
	items := rssItem("First", "https://news.test/1", "Summary one", "Mon, 06 May 2024 10:00:00 GMT") +
		rssItem("No link", "", "dropped", "") +
		rssItem("Second", "https://news.test/2", "", "") +
		rssItem("Third", "https://news.test/3", "Summary three", "")
	srv := feedServer(t, map[string]string{"/rss": fmt.Sprintf(feedTemplate, "Test News", items)})

	result, err := FetchFeed(context.Background(), srv.URL+"/rss", 3)
	if err != nil {
		t.Fatalf("FetchFeed: %v", err)
	}
	if result.Source != "Test News" {
		t.Fatalf("Source = %q; want feed title", result.Source)
	}
	if result.ArticleCount != 2 || len(result.Articles) != 2 {
		t.Fatalf("ArticleCount = %d; want 2 (limit 3, one item without link)", result.ArticleCount)
	}

	first := result.Articles[0]
	if first.Title != "First" || first.Content != "Summary one" || first.Source != "Test News" {
		t.Fatalf("first article = %+v", first)
	}
	want := time.Date(2024, time.May, 6, 10, 0, 0, 0, time.UTC)
	if first.PublishedAt == nil || !first.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v; want %v", first.PublishedAt, want)
	}
	if result.Articles[1].PublishedAt != nil {
		t.Fatalf("undated item got PublishedAt %v", result.Articles[1].PublishedAt)
	}
}

func TestFetchFeedError(t *testing.T) {
	srv := feedServer(t, nil)
	if _, err := FetchFeed(context.Background(), srv.URL+"/missing", 10); err == nil {
		t.Fatal("FetchFeed on a 404 should fail")
	}
}

func TestCollectSkipsKnownLinksAndFailingFeeds(t *testing.T) {
	feedA := fmt.Sprintf(feedTemplate, "A",
		rssItem("Known", "https://news.test/known", "old", "")+
			rssItem("Fresh A", "https://news.test/a", "body a", ""))
	feedB := fmt.Sprintf(feedTemplate, "B",
		rssItem("Fresh A again", "https://news.test/a#comments", "same link", "")+
			rssItem("Fresh B", "https://news.test/b", "body b", ""))
	srv := feedServer(t, map[string]string{"/a": feedA, "/b": feedB})

	store := &fakeLinkStore{links: map[string]bool{"https://news.test/known": true}}
	collector := NewCollector(store, CollectorConfig{MaxItems: 10, Concurrency: 2})

	articles, err := collector.Collect(context.Background(), []string{srv.URL + "/a", srv.URL + "/broken", srv.URL + "/b"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var links []string
	for _, a := range articles {
		links = append(links, a.Link)
		if a.Fingerprint != types.Fingerprint(a.Title, a.Content) {
			t.Fatalf("article %q has fingerprint %q", a.Title, a.Fingerprint)
		}
	}
	want := []string{"https://news.test/a", "https://news.test/b"}
	if strings.Join(links, ",") != strings.Join(want, ",") {
		t.Fatalf("Collect links = %v; want %v", links, want)
	}
}

func TestCollectUsesFilterBeforeStore(t *testing.T) {
	feed := fmt.Sprintf(feedTemplate, "A",
		rssItem("One", "https://news.test/1", "x", "")+
			rssItem("Two", "https://news.test/2", "y", ""))
	srv := feedServer(t, map[string]string{"/a": feed})

	store := &fakeLinkStore{links: map[string]bool{"https://news.test/2": true}}
	filter := &fakeFilter{present: map[string]bool{"https://news.test/2": true}}
	collector := NewCollector(store, CollectorConfig{Filter: filter})

	articles, err := collector.Collect(context.Background(), []string{srv.URL + "/a"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(articles) != 1 || articles[0].Link != "https://news.test/1" {
		t.Fatalf("Collect returned %d articles; want only the unknown link", len(articles))
	}
	if store.checks != 1 {
		t.Fatalf("store checked %d links; want 1 (filter negative skips storage)", store.checks)
	}

	articles[0].ID = 7
	collector.Remember(context.Background(), articles)
	if len(filter.added) != 1 || filter.added[0] != "https://news.test/1" {
		t.Fatalf("filter.added = %v", filter.added)
	}
}

func TestExtractAllRecordsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Story</title></head><body><article><h1>Story</h1>`+
			`<p>`+strings.Repeat("The council approved the new budget after a long debate. ", 20)+`</p>`+
			`</article></body></html>`)
	}))
	defer srv.Close()

	ok := &types.Article{Title: "Story", Link: srv.URL + "/story", Content: "summary"}
	gone := &types.Article{Title: "Gone", Link: srv.URL + "/gone", Content: "summary"}
	NewExtractor(srv.Client(), 2).ExtractAll(context.Background(), []*types.Article{ok, gone})

	if ok.ExtractionError != "" || !strings.Contains(ok.Content, "council approved") {
		t.Fatalf("extracted article = %+v", ok)
	}
	if gone.ExtractionError == "" || gone.Content != "summary" {
		t.Fatalf("failed article = %+v; want error recorded and summary kept", gone)
	}
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := NewCollector(&fakeLinkStore{}, CollectorConfig{})
	_, err := collector.Collect(ctx, []string{"http://127.0.0.1:1/feed"})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Collect error = %v; want nil or context.Canceled", err)
	}
}

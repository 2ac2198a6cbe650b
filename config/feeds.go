package config

import "strings"

// FeedPresets maps friendly names to RSS feed URLs
var FeedPresets = map[string]string{
	"cna": "https://www.channelnewsasia.com/api/v1/rss-outbound-feed?_format=xml",
	"st":  "https://www.straitstimes.com/news/singapore/rss.xml",
	"hn":  "https://hnrss.org/newest",
	"tr":  "https://www.technologyreview.com/feed/",
}

// ResolveFeedURL resolves a preset name to its URL; anything else is returned trimmed.
func ResolveFeedURL(feedInput string) string {
	feedInput = strings.TrimSpace(feedInput)
	if url, exists := FeedPresets[strings.ToLower(feedInput)]; exists {
		return url
	}
	return feedInput
}

// ResolveFeedURLs resolves each entry and drops blanks and repeats, keeping order.
func ResolveFeedURLs(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	var out []string
	for _, in := range inputs {
		url := ResolveFeedURL(in)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}

// ParseFeedList splits a newline or comma separated feed list and resolves presets.
func ParseFeedList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	return ResolveFeedURLs(fields)
}

package rssfeeds

import "testing"

func TestNormalizeURLAndHash(t *testing.T) {
	cases := []struct {
		name        string
		url         string
		wantNormURL string
	}{
		{"simple", "https://example.com/path", "https://example.com/path"},
		{"utm and fragment", "https://example.com/path?utm_source=feed#section", "https://example.com/path"},
		{"uppercase host", "HTTP://Example.COM/", "http://example.com"},
		{"tracking params", "https://example.com/?fbclid=XYZ&gclid=ABC&utm_medium=1", "https://example.com"},
		{"keeps real params", "https://example.com/a?id=7&utm_campaign=x", "https://example.com/a?id=7"},
		{"empty", "  ", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			nu := normalizeURL(c.url)
			if nu != c.wantNormURL {
				t.Fatalf("normalizeURL(%q) = %q; want %q", c.url, nu, c.wantNormURL)
			}
			if HashLink(c.url) != HashLink(c.wantNormURL) {
				t.Fatalf("HashLink(%q) differs from hash of its normalized form", c.url)
			}
		})
	}

	if HashLink("https://example.com/a") == HashLink("https://example.com/b") {
		t.Fatal("different links hash equal")
	}
}

package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"newsagent/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
)

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier(0.5)
	tests := []struct {
		name     string
		title    string
		content  string
		criteria string
		score    float64
		relevant bool
	}{
		{"all terms in title", "Central bank raises interest rates", "", "interest rates", 1, true},
		{"term in content counts half", "Markets rally", "Analysts expect interest cuts", "interest rates", 0.25, false},
		{"stop words ignored", "Rates climb", "", "news about the rates", 1, true},
		{"no match", "Football final", "A late goal", "interest rates", 0, false},
		{"case insensitive", "ELECTION results", "", "Election", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := k.Classify(context.Background(), &types.Article{Title: tt.title, Content: tt.content}, tt.criteria)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if math.Abs(res.Score-tt.score) > 1e-9 || res.Relevant != tt.relevant {
				t.Fatalf("Classify = %+v; want score %v relevant %v", res, tt.score, tt.relevant)
			}
			if res.Reason == "" {
				t.Fatal("Classify returned no reason")
			}
		})
	}
}

func TestKeywordClassifierNoCriteria(t *testing.T) {
	_, err := NewKeywordClassifier(0.5).Classify(context.Background(), &types.Article{Title: "x"}, " the ")
	if !errors.Is(err, ErrNoCriteria) {
		t.Fatalf("Classify error = %v; want ErrNoCriteria", err)
	}
}

type fakeEmbedder struct {
	vectors map[string][]float64
	calls   map[string]int
	err     error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string, _ cohere.EmbedInputType) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		f.calls[text]++
		out[i] = f.vectors[text]
	}
	return out, nil
}

func TestEmbeddingClassifier(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float64{
			"climate policy":             {1, 0},
			"Emissions deal\nSigned":     {1, 0},
			"Transfer window\nStriker":   {0, 1},
			"Half related\nmixed topics": {1, 1},
		},
		calls: map[string]int{},
	}
	c := NewEmbeddingClassifier(embedder, 0.6, 0)

	tests := []struct {
		title, content string
		score          float64
		relevant       bool
	}{
		{"Emissions deal", "Signed", 1, true},
		{"Transfer window", "Striker", 0, false},
		{"Half related", "mixed topics", 1 / math.Sqrt2, true},
	}
	for _, tt := range tests {
		res, err := c.Classify(context.Background(), &types.Article{Title: tt.title, Content: tt.content}, "climate policy")
		if err != nil {
			t.Fatalf("Classify(%q): %v", tt.title, err)
		}
		if math.Abs(res.Score-tt.score) > 1e-9 || res.Relevant != tt.relevant {
			t.Fatalf("Classify(%q) = %+v; want score %v relevant %v", tt.title, res, tt.score, tt.relevant)
		}
	}
	if embedder.calls["climate policy"] != 1 {
		t.Fatalf("criterion embedded %d times; want 1 (cached)", embedder.calls["climate policy"])
	}
}

func TestEmbeddingClassifierErrors(t *testing.T) {
	c := NewEmbeddingClassifier(&fakeEmbedder{err: errors.New("quota"), calls: map[string]int{}}, 0.5, 0)
	if _, err := c.Classify(context.Background(), &types.Article{Title: "x"}, "topic"); err == nil {
		t.Fatal("Classify should surface embedder errors")
	}
	if _, err := c.Classify(context.Background(), &types.Article{Title: "x"}, ""); !errors.Is(err, ErrNoCriteria) {
		t.Fatalf("Classify error = %v; want ErrNoCriteria", err)
	}
}

func TestEmbeddingClassifierCacheIsBounded(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{}, calls: map[string]int{}}
	c := NewEmbeddingClassifier(embedder, 0.5, 0)
	article := &types.Article{Title: "x"}

	for i := 0; i < maxCachedCriteria+5; i++ {
		if _, err := c.Classify(context.Background(), article, fmt.Sprintf("topic %d", i)); err != nil {
			t.Fatalf("Classify: %v", err)
		}
	}
	if len(c.cache) != maxCachedCriteria || len(c.order) != maxCachedCriteria {
		t.Fatalf("cache holds %d entries (order %d); want %d", len(c.cache), len(c.order), maxCachedCriteria)
	}

	// the oldest criterion was evicted and is embedded again
	if _, err := c.Classify(context.Background(), article, "topic 0"); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if embedder.calls["topic 0"] != 2 {
		t.Fatalf("evicted criterion embedded %d times; want 2", embedder.calls["topic 0"])
	}
	// the newest one is still cached
	last := fmt.Sprintf("topic %d", maxCachedCriteria+4)
	if _, err := c.Classify(context.Background(), article, last); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if embedder.calls[last] != 1 {
		t.Fatalf("cached criterion embedded %d times; want 1", embedder.calls[last])
	}
}

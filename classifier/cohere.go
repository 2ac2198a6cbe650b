package classifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"newsagent/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"golang.org/x/time/rate"
)

// Embedder turns texts into embedding vectors, one per input.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float64, error)
}

// CohereEmbeddings implements Embedder using the Cohere Embed API (v2).
type CohereEmbeddings struct {
	client *cohereclient.Client
	model  string
}

// NewCohereEmbeddings creates an embeddings client. An empty model selects embed-english-v3.0.
func NewCohereEmbeddings(apiKey, model string) *CohereEmbeddings {
	if model == "" || !strings.HasPrefix(model, "embed-") {
		model = "embed-english-v3.0"
	}
	// Forces HTTP/1.1; the embed endpoint has produced HTTP/2 stream errors.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereEmbeddings{client: client, model: model}
}

func (c *CohereEmbeddings) EmbedTexts(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      inputType,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed error: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	return resp.Embeddings.Float, nil
}

// EmbeddingClassifier scores articles by cosine similarity between the criterion
// and article embeddings. Calls to the embedder are paced by a rate limiter.
type EmbeddingClassifier struct {
	embedder  Embedder
	limiter   *rate.Limiter
	threshold float64

	mu    sync.Mutex
	cache map[string][]float64
	order []string // insertion order, oldest first
}

// maxCachedCriteria bounds the criterion embedding cache; the oldest entry is evicted first.
const maxCachedCriteria = 32

// NewEmbeddingClassifier creates a classifier allowing rps embedder calls per second.
func NewEmbeddingClassifier(embedder Embedder, threshold, rps float64) *EmbeddingClassifier {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &EmbeddingClassifier{
		embedder:  embedder,
		limiter:   rate.NewLimiter(limit, 1),
		threshold: threshold,
		cache:     make(map[string][]float64),
	}
}

// Classify embeds the criterion (cached) and the article, and scores their cosine similarity.
func (e *EmbeddingClassifier) Classify(ctx context.Context, article *types.Article, criteria string) (Result, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" {
		return Result{}, ErrNoCriteria
	}

	query, err := e.criterionEmbedding(ctx, criteria)
	if err != nil {
		return Result{}, err
	}

	text := strings.TrimSpace(article.Title + "\n" + article.Content)
	docs, err := e.embed(ctx, []string{text}, cohere.EmbedInputTypeSearchDocument)
	if err != nil {
		return Result{}, err
	}

	score := clamp01(cosine(query, docs[0]))
	return Result{
		Score:    score,
		Relevant: score >= e.threshold,
		Reason:   fmt.Sprintf("Embedding similarity to the criterion is %.2f", score),
	}, nil
}

func (e *EmbeddingClassifier) criterionEmbedding(ctx context.Context, criteria string) ([]float64, error) {
	e.mu.Lock()
	cached, ok := e.cache[criteria]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	vecs, err := e.embed(ctx, []string{criteria}, cohere.EmbedInputTypeSearchQuery)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, ok := e.cache[criteria]; !ok {
		if len(e.order) >= maxCachedCriteria {
			delete(e.cache, e.order[0])
			e.order = e.order[1:]
		}
		e.order = append(e.order, criteria)
	}
	e.cache[criteria] = vecs[0]
	e.mu.Unlock()
	return vecs[0], nil
}

func (e *EmbeddingClassifier) embed(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	vecs, err := e.embedder.EmbedTexts(ctx, texts, inputType)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	return vecs, nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

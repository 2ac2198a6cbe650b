// Package api exposes the HTTP interface of the service.
package api

import (
	"context"
	"net/http"

	"newsagent/deduplication"
	"newsagent/logging"
	"newsagent/types"

	"github.com/gin-gonic/gin"
)

// Submitter queues processing requests.
type Submitter interface {
	Submit(ctx context.Context, req types.ProcessRequest) (string, error)
}

// TaskReader reads task state.
type TaskReader interface {
	Get(ctx context.Context, id string) (*types.Task, error)
}

// ArticleStore is the article persistence the handlers read and clear.
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (*types.Article, error)
	GetArticlesByIDs(ctx context.Context, ids []int64) ([]*types.Article, error)
	Results(ctx context.Context, limit int) ([]types.Article, error)
	DuplicateCount(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int64, error)
}

// Deduplicator finds and marks duplicates.
type Deduplicator interface {
	FindDuplicates(ctx context.Context, articles []*types.Article, threshold float64, scopeID *int64) (deduplication.Duplicates, error)
	MarkDuplicates(ctx context.Context, dups deduplication.Duplicates) error
	Threshold() float64
}

// FeedFetcher loads one feed for preview.
type FeedFetcher func(ctx context.Context, feedURL string, maxCount int) (*types.FeedResult, error)

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Queue    Submitter
	Tasks    TaskReader
	Articles ArticleStore
	Dedup    Deduplicator
	Fetch    FeedFetcher
	// Ping checks the database for /api/health; nil skips the check.
	Ping func(ctx context.Context) error
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.Error("panic in handler", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	RegisterProcessRoutes(r, deps)
	RegisterArticleRoutes(r, deps)
	RegisterDeduplicationRoutes(r, deps)
	RegisterRSSRoutes(r, deps)
	RegisterHealthRoutes(r, deps)
	return r
}

func requestLogger() gin.HandlerFunc {
	logger := logging.WithPrefix("http")
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status())
	}
}

package api

import (
	"errors"
	"net/http"

	"newsagent/deduplication"

	"github.com/gin-gonic/gin"
)

// RegisterDeduplicationRoutes registers deduplication endpoints.
func RegisterDeduplicationRoutes(r *gin.Engine, deps Deps) {
	h := &deduplicationController{deps: deps}
	g := r.Group("/api/deduplication")
	g.POST("/check", h.check)
	g.POST("/mark", h.mark)
	g.GET("/count", h.count)
}

// CheckDuplicatesRequest asks for duplicate detection over stored articles
type CheckDuplicatesRequest struct {
	ArticleIDs []int64 `json:"article_ids" binding:"required,min=1"`
	Threshold  float64 `json:"threshold"`
	ScopeID    *int64  `json:"scope_id"`
}

// CheckDuplicatesResponse maps duplicate ids to their canonical ids
type CheckDuplicatesResponse struct {
	Duplicates deduplication.Duplicates `json:"duplicates"`
	Count      int                      `json:"count"`
	Threshold  float64                  `json:"threshold"`
	Missing    []int64                  `json:"missing,omitempty"`
}

// MarkDuplicatesRequest persists a duplicate mapping
type MarkDuplicatesRequest struct {
	Duplicates deduplication.Duplicates `json:"duplicates" binding:"required"`
}

type deduplicationController struct {
	deps Deps
}

func (h *deduplicationController) check(c *gin.Context) {
	var req CheckDuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	articles, err := h.deps.Articles.GetArticlesByIDs(ctx, req.ArticleIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load articles: " + err.Error()})
		return
	}

	found := make(map[int64]bool, len(articles))
	for _, a := range articles {
		found[a.ID] = true
	}
	var missing []int64
	for _, id := range req.ArticleIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}

	dups, err := h.deps.Dedup.FindDuplicates(ctx, articles, req.Threshold, req.ScopeID)
	if err != nil {
		writeDedupError(c, err)
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = h.deps.Dedup.Threshold()
	}
	if dups == nil {
		dups = deduplication.Duplicates{}
	}
	c.JSON(http.StatusOK, CheckDuplicatesResponse{Duplicates: dups, Count: len(dups), Threshold: threshold, Missing: missing})
}

func (h *deduplicationController) mark(c *gin.Context) {
	var req MarkDuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deps.Dedup.MarkDuplicates(c.Request.Context(), req.Duplicates); err != nil {
		writeDedupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked", "count": len(req.Duplicates)})
}

func (h *deduplicationController) count(c *gin.Context) {
	n, err := h.deps.Articles.DuplicateCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get count: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func writeDedupError(c *gin.Context, err error) {
	var storageErr *deduplication.StorageError
	switch {
	case errors.As(err, &storageErr) && errors.Is(err, deduplication.ErrDanglingCanonical):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &storageErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.Is(err, deduplication.ErrInvalidThreshold),
		errors.Is(err, deduplication.ErrInvalidInput),
		errors.Is(err, deduplication.ErrDanglingCanonical):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

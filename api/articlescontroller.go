package api

import (
	"net/http"
	"strconv"
	"time"

	"newsagent/types"

	"github.com/gin-gonic/gin"
)

const unknownSource = "Unknown source"

// RegisterArticleRoutes registers article-related routes.
func RegisterArticleRoutes(r *gin.Engine, deps Deps) {
	h := &articleController{deps: deps}
	r.GET("/api/results", h.results)
	r.GET("/api/articles/:id", h.get)
	r.POST("/api/clear-db", h.clear)
}

// ResultArticle is one row of the results listing
type ResultArticle struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Content              string     `json:"content"`
	Link                 string     `json:"link"`
	Source               string     `json:"source"`
	PublishedAt          *time.Time `json:"published_at"`
	RelevanceScore       *float64   `json:"relevance_score"`
	IsRelevant           *bool      `json:"is_relevant"`
	ClassificationReason string     `json:"classification_reason"`
}

type articleController struct {
	deps Deps
}

func (h *articleController) results(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	articles, err := h.deps.Articles.Results(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results: " + err.Error()})
		return
	}

	out := make([]ResultArticle, 0, len(articles))
	for _, a := range articles {
		out = append(out, toResult(a))
	}
	c.JSON(http.StatusOK, gin.H{"articles": out})
}

func (h *articleController) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}
	article, err := h.deps.Articles.GetArticle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article: " + err.Error()})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *articleController) clear(c *gin.Context) {
	deleted, err := h.deps.Articles.Clear(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": deleted,
		"message": "Database cleared. Articles deleted: " + strconv.FormatInt(deleted, 10),
	})
}

func toResult(a types.Article) ResultArticle {
	source := a.Source
	if source == "" {
		source = unknownSource
	}
	return ResultArticle{
		ID:                   a.ID,
		Title:                a.Title,
		Content:              a.Content,
		Link:                 a.Link,
		Source:               source,
		PublishedAt:          a.PublishedAt,
		RelevanceScore:       a.RelevanceScore,
		IsRelevant:           a.IsRelevant,
		ClassificationReason: a.ClassificationReason,
	}
}

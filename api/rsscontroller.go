package api

import (
	"net/http"
	"strconv"

	"newsagent/config"

	"github.com/gin-gonic/gin"
)

const defaultPreviewCount = 10

// RegisterRSSRoutes registers RSS-related endpoints.
func RegisterRSSRoutes(r *gin.Engine, deps Deps) {
	if deps.Fetch == nil {
		return
	}
	g := r.Group("/api/rss")
	g.GET("/preview", func(c *gin.Context) { handleRSSPreview(c, deps.Fetch) })
	g.GET("/presets", handleRSSPresets)
}

// handleRSSPreview fetches a feed (preset name or URL) without storing anything.
func handleRSSPreview(c *gin.Context, fetch FeedFetcher) {
	feed := config.ResolveFeedURL(c.Query("feed"))
	if feed == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feed is required"})
		return
	}
	count := defaultPreviewCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		count = n
	}

	result, err := fetch(c.Request.Context(), feed, count)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func handleRSSPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": config.FeedPresets})
}

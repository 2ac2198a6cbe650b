package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"newsagent/config"
	"newsagent/pipeline"
	"newsagent/tasks"
	"newsagent/types"

	"github.com/gin-gonic/gin"
)

// RegisterProcessRoutes registers the processing endpoints.
func RegisterProcessRoutes(r *gin.Engine, deps Deps) {
	h := &processController{deps: deps}
	r.POST("/api/start", h.start)
	r.GET("/api/status/:id", h.status)
}

// FeedList accepts either a newline separated string or an array of feed URLs or preset names.
type FeedList []string

func (f *FeedList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*f = config.ParseFeedList(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("rss_feeds must be a string or an array of strings")
	}
	*f = config.ResolveFeedURLs(list)
	return nil
}

// StartRequest starts a processing pass
type StartRequest struct {
	RSSFeeds FeedList `json:"rss_feeds"`
	Criteria string   `json:"criteria"`
}

type processController struct {
	deps Deps
}

func (h *processController) start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.RSSFeeds) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no RSS feeds provided"})
		return
	}
	criteria := strings.TrimSpace(req.Criteria)
	if criteria == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selection criteria not provided"})
		return
	}

	id, err := h.deps.Queue.Submit(c.Request.Context(), types.ProcessRequest{Feeds: req.RSSFeeds, Criteria: criteria})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"task_id": id})
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrQueueClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrNoFeeds):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start processing: " + err.Error()})
	}
}

func (h *processController) status(c *gin.Context) {
	task, err := h.deps.Tasks.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, tasks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
	"github.com/iadityaojha/postflow/internal/service"
)

type approveRequest struct {
	ScheduledTime *time.Time `json:"scheduled_time"`
}

type updatePostRequest struct {
	Content  string  `json:"content" binding:"required,min=1"`
	Hashtags *string `json:"hashtags"`
}

func (s *Server) handleListPosts(c *gin.Context) {
	user := service.CurrentUser(c)

	status := models.PostStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}
	platform := models.Platform(c.Query("platform"))
	if platform != "" && !platform.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid platform filter"})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	posts, total, err := s.Store.List(c.Request.Context(), user.ID, status, platform, offset, limit)
	if err != nil {
		s.Logger.Error("Failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "posts": posts})
}

func (s *Server) handleStats(c *gin.Context) {
	user := service.CurrentUser(c)
	stats, err := s.Store.Stats(c.Request.Context(), user.ID)
	if err != nil {
		s.Logger.Error("Failed to get post stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get post stats"})
		return
	}

	var total int64
	for _, n := range stats {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"draft":     stats[models.StatusDraft],
		"pending":   stats[models.StatusPending],
		"posted":    stats[models.StatusPosted],
		"failed":    stats[models.StatusFailed],
		"cancelled": stats[models.StatusCancelled],
		"total":     total,
	})
}

func (s *Server) handleUpcoming(c *gin.Context) {
	user := service.CurrentUser(c)
	posts, err := s.Store.Upcoming(c.Request.Context(), user.ID, 20)
	if err != nil {
		s.Logger.Error("Failed to list upcoming posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list upcoming posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) handleGetPost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	post, err := s.Store.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		s.postError(c, err, "Failed to get post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "error_logs": post.ErrorLogs})
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := service.CurrentUser(c)
	post, err := s.Store.UpdateContent(c.Request.Context(), user.ID, id, req.Content, req.Hashtags)
	if err != nil {
		s.postError(c, err, "Failed to update post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (s *Server) handleApprovePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Body is optional: approving without a schedule publishes on the next
	// poll cycle.
	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	user := service.CurrentUser(c)
	post, err := s.Store.Approve(c.Request.Context(), user.ID, id, req.ScheduledTime)
	if err != nil {
		s.postError(c, err, "Failed to approve post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (s *Server) handleCancelPost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	post, err := s.Store.Cancel(c.Request.Context(), user.ID, id)
	if err != nil {
		s.postError(c, err, "Failed to cancel post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (s *Server) handleRetryPost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	post, err := s.Store.Retry(c.Request.Context(), user.ID, id)
	if err != nil {
		s.postError(c, err, "Failed to retry post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	if err := s.Store.Delete(c.Request.Context(), user.ID, id); err != nil {
		s.postError(c, err, "Failed to delete post")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) postError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.Logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

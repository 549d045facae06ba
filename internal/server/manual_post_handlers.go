package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
	"github.com/iadityaojha/postflow/internal/service"
)

const maxImageBytes = 10 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type manualPostRequest struct {
	Content       string     `json:"content" binding:"required,min=1"`
	Platforms     []string   `json:"platforms" binding:"required,min=1"`
	ImageURL      string     `json:"image_url"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// handleManualPost stores user-written content as pending posts. Without a
// schedule the next poll cycle delivers them; with one they wait for it.
func (s *Server) handleManualPost(c *gin.Context) {
	var req manualPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platforms := make([]models.Platform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		platform := models.Platform(p)
		if !platform.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid platform: " + p})
			return
		}
		platforms = append(platforms, platform)
	}

	user := service.CurrentUser(c)
	topic, posts, err := s.Store.CreateManual(c.Request.Context(), user.ID, req.Content, req.ImageURL, platforms, req.ScheduledTime)
	if err != nil {
		s.Logger.Error("Failed to create manual post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create manual post"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"topic": topic, "posts": posts})
}

// handleUploadImage accepts one image for use as a manual post attachment and
// returns the path it is served back from.
func (s *Server) handleUploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	if file.Size > maxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}
	ext, ok := allowedImageTypes[file.Header.Get("Content-Type")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Allowed types: jpeg, png, gif, webp"})
		return
	}

	if err := os.MkdirAll(s.Config.Server.UploadDir, 0o755); err != nil {
		s.Logger.Error("Failed to create upload directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image"})
		return
	}

	user := service.CurrentUser(c)
	filename := fmt.Sprintf("%d_%s.%s", user.ID, uuid.New().String(), ext)
	dst := filepath.Join(s.Config.Server.UploadDir, filename)

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		s.Logger.Error("Failed to save uploaded image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image"})
		return
	}
	defer out.Close()

	// Recheck the size while copying; Size comes from the client.
	written, err := io.Copy(out, io.LimitReader(src, maxImageBytes+1))
	if err != nil || written > maxImageBytes {
		os.Remove(dst)
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}

	s.Logger.Info("Image uploaded",
		zap.Uint("user_id", user.ID),
		zap.String("filename", filename),
		zap.Int64("size", written))
	c.JSON(http.StatusCreated, gin.H{
		"filename": filename,
		"path":     "/api/v1/manual-post/images/" + filename,
		"size":     written,
	})
}

// handleGetImage serves uploaded images. The filename is flattened to its
// base so the path cannot escape the upload directory.
func (s *Server) handleGetImage(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	path := filepath.Join(s.Config.Server.UploadDir, filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	c.File(path)
}

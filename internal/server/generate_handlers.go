package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
	"github.com/iadityaojha/postflow/internal/service"
	"github.com/iadityaojha/postflow/internal/service/generator"
)

type generateRequest struct {
	Topic        string   `json:"topic" binding:"required,min=3,max=500"`
	Platforms    []string `json:"platforms"`
	Tone         string   `json:"tone"`
	ExtraContext string   `json:"additional_context" binding:"max=1000"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
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
	if len(platforms) == 0 {
		platforms = models.Platforms
	}

	tone := models.ToneProfessional
	if req.Tone != "" {
		tone = models.Tone(req.Tone)
		if !tone.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tone: " + req.Tone})
			return
		}
	}

	user := service.CurrentUser(c)
	topic, posts, err := s.Generator.GenerateDrafts(c.Request.Context(), user.ID, req.Topic, platforms, tone, req.ExtraContext)
	if err != nil {
		if errors.Is(err, generator.ErrNoGenerationCredential) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Configure an OpenAI or Gemini key before generating content"})
			return
		}
		s.Logger.Error("Content generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Content generation failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"topic": topic, "posts": posts})
}

func (s *Server) handleListTopics(c *gin.Context) {
	user := service.CurrentUser(c)
	topics, err := s.Store.Topics(c.Request.Context(), user.ID)
	if err != nil {
		s.Logger.Error("Failed to list topics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list topics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

func (s *Server) handleTopicPosts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	posts, err := s.Store.TopicPosts(c.Request.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, service.ErrTopicNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
			return
		}
		s.Logger.Error("Failed to list topic posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list topic posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

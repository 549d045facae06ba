package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
	"github.com/iadityaojha/postflow/internal/service"
	"github.com/iadityaojha/postflow/internal/service/vault"
)

type storeKeyRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Secret string `json:"secret" binding:"required,min=10"`
}

func (s *Server) handleListKeys(c *gin.Context) {
	user := service.CurrentUser(c)
	creds, err := s.Vault.List(c.Request.Context(), user.ID)
	if err != nil {
		s.Logger.Error("Failed to list credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds})
}

func (s *Server) handleKeyStatus(c *gin.Context) {
	user := service.CurrentUser(c)
	status, err := s.Vault.Status(c.Request.Context(), user.ID)
	if err != nil {
		s.Logger.Error("Failed to get credential status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get credential status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStoreKey(c *gin.Context) {
	var req storeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := service.CurrentUser(c)
	cred, err := s.Vault.Store(c.Request.Context(), user.ID, models.ServiceKind(req.Kind), req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrInvalidKind):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported service kind"})
		case errors.Is(err, vault.ErrEmptySecret):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Secret must not be empty"})
		default:
			s.Logger.Error("Failed to store credential", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credential"})
		}
		return
	}

	cred.Ciphertext = ""
	c.JSON(http.StatusCreated, gin.H{"credential": cred})
}

func (s *Server) handleDeleteKey(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	if err := s.Vault.Delete(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, vault.ErrAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		s.Logger.Error("Failed to delete credential", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete credential"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTestKey(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user := service.CurrentUser(c)
	result, err := s.Vault.Test(c.Request.Context(), user.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found"})
		case errors.Is(err, vault.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		default:
			s.Logger.Error("Failed to test credential", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to test credential"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/iadityaojha/postflow/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
)

const userContextKey = "auth.user"

// AuthService manages user accounts and bearer-token sessions. It doubles as
// the user directory: every request's owner is resolved here before any
// vault or store access.
type AuthService struct {
	db       *gorm.DB
	logger   *zap.Logger
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(db *gorm.DB, logger *zap.Logger, secret string, tokenTTL time.Duration) (*AuthService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &AuthService{
		db:       db,
		logger:   logger,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}, nil
}

func (a *AuthService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var count int64
	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalized).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:        normalized,
		PasswordHash: string(hash),
		FullName:     fullName,
		IsActive:     true,
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	a.logger.Info("User registered", zap.Uint("user_id", user.ID))
	return &user, nil
}

func (a *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.issueToken(&user)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := a.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		a.logger.Warn("Failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return token, &user, nil
}

func (a *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a bearer token and returns the user id it was issued
// for.
func (a *AuthService) ParseToken(tokenString string) (uint, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidCredentials
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, ErrInvalidCredentials
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidCredentials
	}
	return uint(id), nil
}

// Middleware resolves the current user from the Authorization header and
// aborts unauthenticated requests.
func (a *AuthService) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		var user models.User
		if err := a.db.Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(userContextKey, &user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by Middleware.
func CurrentUser(c *gin.Context) *models.User {
	user, _ := c.MustGet(userContextKey).(*models.User)
	return user
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	auth, err := NewAuthService(newTestDB(t), zap.NewNop(), "test-jwt-secret", time.Hour)
	require.NoError(t, err)
	return auth
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	_, err := NewAuthService(newTestDB(t), zap.NewNop(), "", time.Hour)
	require.Error(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t)

	user, err := auth.Register(ctx, "  Alice@Example.COM ", "s3cret-pass", "Alice Example")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email, "email is normalized")
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.True(t, user.IsActive)

	token, loggedIn, err := auth.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotNil(t, loggedIn.LastLogin)

	userID, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t)

	_, err := auth.Register(ctx, "bob@example.com", "password-one", "Bob")
	require.NoError(t, err)

	_, err = auth.Register(ctx, "BOB@example.com", "password-two", "Other Bob")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t)

	_, err := auth.Register(ctx, "carol@example.com", "correct-horse", "Carol")
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "carol@example.com", "wrong-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t)

	_, err := auth.Register(ctx, "dave@example.com", "pass-phrase-1", "Dave")
	require.NoError(t, err)
	token, _, err := auth.Login(ctx, "dave@example.com", "pass-phrase-1")
	require.NoError(t, err)

	_, err = auth.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	other, err := NewAuthService(auth.db, zap.NewNop(), "different-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	auth := newTestAuth(t)

	user, err := auth.Register(ctx, "eve@example.com", "middleware-pass", "Eve")
	require.NoError(t, err)
	token, _, err := auth.Login(ctx, "eve@example.com", "middleware-pass")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", auth.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID})
	})

	// No header.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":`)

	// Deactivated accounts lose access even with a live token.
	require.NoError(t, auth.db.Model(user).Update("is_active", false).Error)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

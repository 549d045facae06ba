package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
)

// Facebook's feed post limit.
const facebookMaxChars = 63206

// FacebookPublisher posts to the user's feed through the Graph API.
type FacebookPublisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type graphPostResponse struct {
	ID string `json:"id"`
}

func NewFacebookPublisher(logger *zap.Logger) *FacebookPublisher {
	return &FacebookPublisher{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://graph.facebook.com/v18.0",
	}
}

func (p *FacebookPublisher) Platform() models.Platform {
	return models.PlatformFacebook
}

func (p *FacebookPublisher) Publish(ctx context.Context, accessToken string, content Content) Outcome {
	if accessToken == "" {
		return Failed(ErrAuth, "facebook access token is empty")
	}

	message := content.Caption()
	if n := utf8.RuneCountInString(message); n > facebookMaxChars {
		return Failed(ErrPermanent,
			fmt.Sprintf("content exceeds facebook limit of %d characters (got %d)", facebookMaxChars, n))
	}

	form := url.Values{}
	form.Set("message", message)
	if content.ImageURL != "" {
		form.Set("link", content.ImageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/me/feed", strings.NewReader(form.Encode()))
	if err != nil {
		return Failed(ErrPermanent, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Failed(ErrTransient, fmt.Sprintf("facebook request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Failed(classifyStatus(resp.StatusCode),
			fmt.Sprintf("facebook API returned status %d: %s", resp.StatusCode, string(detail)))
	}

	var posted graphPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		return Failed(ErrTransient, fmt.Sprintf("failed to decode post response: %v", err))
	}

	p.logger.Info("Facebook post created", zap.String("remote_post_id", posted.ID))
	return Succeeded(posted.ID)
}

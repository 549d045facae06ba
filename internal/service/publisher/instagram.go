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

// Instagram caps captions at 2200 characters.
const instagramMaxChars = 2200

// InstagramPublisher publishes through the Graph API media container flow:
// create a container for the caption/image, then publish it.
type InstagramPublisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

func NewInstagramPublisher(logger *zap.Logger) *InstagramPublisher {
	return &InstagramPublisher{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://graph.facebook.com/v18.0",
	}
}

func (p *InstagramPublisher) Platform() models.Platform {
	return models.PlatformInstagram
}

func (p *InstagramPublisher) Publish(ctx context.Context, accessToken string, content Content) Outcome {
	if accessToken == "" {
		return Failed(ErrAuth, "instagram access token is empty")
	}

	caption := content.Caption()
	if n := utf8.RuneCountInString(caption); n > instagramMaxChars {
		return Failed(ErrPermanent,
			fmt.Sprintf("caption exceeds instagram limit of %d characters (got %d)", instagramMaxChars, n))
	}

	// Step 1: create the media container.
	form := url.Values{}
	form.Set("caption", caption)
	if content.ImageURL != "" {
		form.Set("image_url", content.ImageURL)
	}

	containerID, outcome := p.graphPost(ctx, accessToken, "/me/media", form)
	if outcome != nil {
		return *outcome
	}

	// Step 2: publish the container.
	publishForm := url.Values{}
	publishForm.Set("creation_id", containerID)

	mediaID, outcome := p.graphPost(ctx, accessToken, "/me/media_publish", publishForm)
	if outcome != nil {
		return *outcome
	}

	p.logger.Info("Instagram media published", zap.String("remote_post_id", mediaID))
	return Succeeded(mediaID)
}

func (p *InstagramPublisher) graphPost(ctx context.Context, accessToken, path string, form url.Values) (string, *Outcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		o := Failed(ErrPermanent, fmt.Sprintf("failed to create request: %v", err))
		return "", &o
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		o := Failed(ErrTransient, fmt.Sprintf("instagram request failed: %v", err))
		return "", &o
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		o := Failed(classifyStatus(resp.StatusCode),
			fmt.Sprintf("instagram API returned status %d: %s", resp.StatusCode, string(detail)))
		return "", &o
	}

	var created graphPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		o := Failed(ErrTransient, fmt.Sprintf("failed to decode media response: %v", err))
		return "", &o
	}
	return created.ID, nil
}

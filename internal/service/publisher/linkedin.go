package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
)

// LinkedIn caps post commentary at 3000 characters.
const linkedInMaxChars = 3000

// LinkedInPublisher posts UGC shares through the LinkedIn REST API.
type LinkedInPublisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type linkedInShareRequest struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent linkedInSpecificContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type linkedInSpecificContent struct {
	ShareContent linkedInShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type linkedInShareContent struct {
	ShareCommentary    linkedInText `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
}

type linkedInText struct {
	Text string `json:"text"`
}

type linkedInShareResponse struct {
	ID string `json:"id"`
}

type linkedInUserInfo struct {
	Sub string `json:"sub"`
}

func NewLinkedInPublisher(logger *zap.Logger) *LinkedInPublisher {
	return &LinkedInPublisher{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.linkedin.com",
	}
}

func (p *LinkedInPublisher) Platform() models.Platform {
	return models.PlatformLinkedIn
}

func (p *LinkedInPublisher) Publish(ctx context.Context, accessToken string, content Content) Outcome {
	if accessToken == "" {
		return Failed(ErrAuth, "linkedin access token is empty")
	}

	// Enforce the platform limit locally so oversize content fails cleanly
	// without spending a network round trip. The limit counts characters,
	// not bytes.
	caption := content.Caption()
	if n := utf8.RuneCountInString(caption); n > linkedInMaxChars {
		return Failed(ErrPermanent,
			fmt.Sprintf("content exceeds linkedin limit of %d characters (got %d)", linkedInMaxChars, n))
	}

	memberURN, outcome := p.resolveAuthor(ctx, accessToken)
	if outcome != nil {
		return *outcome
	}

	payload := linkedInShareRequest{
		Author:         memberURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: linkedInSpecificContent{
			ShareContent: linkedInShareContent{
				ShareCommentary:    linkedInText{Text: caption},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Failed(ErrPermanent, fmt.Sprintf("failed to marshal share request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return Failed(ErrPermanent, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return Failed(ErrTransient, fmt.Sprintf("linkedin request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Failed(classifyStatus(resp.StatusCode),
			fmt.Sprintf("linkedin API returned status %d: %s", resp.StatusCode, string(detail)))
	}

	var share linkedInShareResponse
	if err := json.NewDecoder(resp.Body).Decode(&share); err != nil {
		return Failed(ErrTransient, fmt.Sprintf("failed to decode share response: %v", err))
	}

	p.logger.Info("LinkedIn share created", zap.String("remote_post_id", share.ID))
	return Succeeded(share.ID)
}

// resolveAuthor looks up the member URN the share must be attributed to.
func (p *LinkedInPublisher) resolveAuthor(ctx context.Context, accessToken string) (string, *Outcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/userinfo", nil)
	if err != nil {
		o := Failed(ErrPermanent, fmt.Sprintf("failed to create request: %v", err))
		return "", &o
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		o := Failed(ErrTransient, fmt.Sprintf("linkedin request failed: %v", err))
		return "", &o
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		o := Failed(classifyStatus(resp.StatusCode),
			fmt.Sprintf("linkedin userinfo returned status %d: %s", resp.StatusCode, string(detail)))
		return "", &o
	}

	var info linkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		o := Failed(ErrTransient, fmt.Sprintf("failed to decode userinfo response: %v", err))
		return "", &o
	}
	return "urn:li:person:" + info.Sub, nil
}

package vault

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"

	"github.com/iadityaojha/postflow/internal/models"
)

// Prober performs the minimal authenticated call used by Vault.Test. A nil
// error means the credential authenticated successfully.
type Prober interface {
	Probe(ctx context.Context, kind models.ServiceKind, secret string) error
}

const (
	probeTimeout     = 10 * time.Second
	linkedInUserInfo = "https://api.linkedin.com/v2/userinfo"
	graphAPIMe       = "https://graph.facebook.com/v18.0/me"
)

type liveProber struct {
	client *http.Client
}

// NewLiveProber probes real services: a model-list call for generation
// providers, a whoami call for publishing platforms.
func NewLiveProber() Prober {
	return &liveProber{
		client: &http.Client{Timeout: probeTimeout},
	}
}

func (p *liveProber) Probe(ctx context.Context, kind models.ServiceKind, secret string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	switch kind {
	case models.ServiceOpenAI:
		client := openai.NewClient(option.WithAPIKey(secret))
		if _, err := client.Models.List(ctx); err != nil {
			return fmt.Errorf("openai key verification failed: %w", err)
		}
		return nil

	case models.ServiceGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  secret,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		if _, err := client.Models.List(ctx, nil); err != nil {
			return fmt.Errorf("gemini key verification failed: %w", err)
		}
		return nil

	case models.ServiceLinkedIn:
		return p.bearerGet(ctx, "linkedin", linkedInUserInfo, secret)

	case models.ServiceInstagram, models.ServiceFacebook:
		return p.bearerGet(ctx, string(kind), graphAPIMe, secret)
	}

	return fmt.Errorf("no probe for service kind %q", kind)
}

func (p *liveProber) bearerGet(ctx context.Context, service, url, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s API unreachable: %w", service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s token is invalid or expired", service)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s API returned status %d: %s", service, resp.StatusCode, string(body))
	}
}

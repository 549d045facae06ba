package publisher

import (
	"context"
	"net/http"
	"strings"

	"github.com/iadityaojha/postflow/internal/models"
)

// ErrorKind classifies a failed publish attempt. The delivery scheduler's
// retry policy depends on it: auth and permanent failures are terminal,
// rate-limited and transient failures are retried.
type ErrorKind string

const (
	ErrAuth        ErrorKind = "auth"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrTransient   ErrorKind = "transient"
	ErrPermanent   ErrorKind = "permanent"
)

// Retryable reports whether another automatic attempt makes sense.
func (k ErrorKind) Retryable() bool {
	return k == ErrRateLimited || k == ErrTransient
}

// Content is the platform-neutral payload of one publish call.
type Content struct {
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Caption renders the body with hashtags appended, the form caption-style
// platforms expect.
func (c Content) Caption() string {
	if len(c.Hashtags) == 0 {
		return c.Body
	}
	return c.Body + "\n\n" + strings.Join(c.Hashtags, " ")
}

// Outcome is the result of one publish attempt.
type Outcome struct {
	Success      bool      `json:"success"`
	RemotePostID string    `json:"remote_post_id,omitempty"`
	Kind         ErrorKind `json:"error_kind,omitempty"`
	Detail       string    `json:"error_detail,omitempty"`
}

func Succeeded(remotePostID string) Outcome {
	return Outcome{Success: true, RemotePostID: remotePostID}
}

func Failed(kind ErrorKind, detail string) Outcome {
	return Outcome{Kind: kind, Detail: detail}
}

// Publisher delivers content to one external platform. Implementations must
// enforce platform content constraints locally before any network call, and
// must honor ctx cancellation on outbound requests.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, accessToken string, content Content) Outcome
}

// classifyStatus maps an HTTP response status to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// Transport-level failures (timeouts, refused connections, DNS) are all
// transient: an unresponsive platform must never fail a post permanently.

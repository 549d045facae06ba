// Package generator produces platform-tagged draft posts from a topic,
// using the owning user's own LLM credentials.
package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/iadityaojha/postflow/internal/config"
	"github.com/iadityaojha/postflow/internal/models"
	"github.com/iadityaojha/postflow/internal/service/vault"
)

// ErrNoGenerationCredential is returned when the user has configured neither
// generation provider.
var ErrNoGenerationCredential = errors.New("no content generation credential configured")

// Client generates content for one platform. Implementations wrap a
// provider SDK with the user's revealed key.
type Client interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Topic        string
	Platform     models.Platform
	Tone         models.Tone
	ExtraContext string
}

type Result struct {
	Content  string
	Hashtags []string
}

var toneInstructions = map[models.Tone]string{
	models.ToneProfessional:  "Write in a professional, authoritative tone suitable for business audiences.",
	models.ToneCasual:        "Write in a friendly, conversational tone that feels approachable.",
	models.ToneEducational:   "Write in an informative, teaching style that explains concepts clearly.",
	models.ToneInspirational: "Write in an uplifting, motivational tone that inspires action.",
}

var platformPrompts = map[models.Platform]string{
	models.PlatformLinkedIn: `Create a professional LinkedIn post about: %s

Requirements:
- Start with a compelling hook
- Include 3-5 key insights or takeaways
- Use appropriate spacing for readability
- End with a thought-provoking question
- Keep it 200-300 words
- Don't include hashtags (added separately)

%s`,
	models.PlatformInstagram: `Create an Instagram caption about: %s

Requirements:
- Start with a POWERFUL hook (emoji + attention-grabbing statement)
- Keep main message short and punchy (max 150 words)
- Use line breaks for readability
- Include a clear call-to-action
- End with 15-20 relevant hashtags

%s`,
	models.PlatformFacebook: `Create a Facebook post about: %s

Requirements:
- Use a storytelling approach
- Make complex concepts simple and digestible
- Include a personal touch or real-world example
- Write in a conversational tone
- End with a clear call-to-action
- Keep it 150-250 words

%s`,
}

func buildPrompt(req Request) string {
	prompt := fmt.Sprintf(platformPrompts[req.Platform], req.Topic, toneInstructions[req.Tone])
	if req.ExtraContext != "" {
		prompt += "\n\nAdditional context: " + req.ExtraContext
	}
	return prompt
}

var hashtagPattern = regexp.MustCompile(`#\w+`)

// extractHashtags pulls unique hashtags out of generated text, sorted for
// stable output.
func extractHashtags(text string) []string {
	seen := make(map[string]struct{})
	for _, tag := range hashtagPattern.FindAllString(text, -1) {
		seen[tag] = struct{}{}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Service resolves a generation client per user and turns one generation
// request into a topic plus one draft post per requested platform.
type Service struct {
	cfg    *config.GenerationConfig
	db     *gorm.DB
	vault  *vault.Vault
	logger *zap.Logger

	// newClient resolves the generation client for a user; swapped out in
	// tests.
	newClient func(ctx context.Context, userID uint) (Client, error)
}

func NewService(cfg *config.GenerationConfig, db *gorm.DB, v *vault.Vault, logger *zap.Logger) *Service {
	s := &Service{cfg: cfg, db: db, vault: v, logger: logger}
	s.newClient = s.clientFor
	return s
}

// clientFor picks the user's generation provider, OpenAI first.
func (s *Service) clientFor(ctx context.Context, userID uint) (Client, error) {
	if key, err := s.vault.RevealKind(ctx, userID, models.ServiceOpenAI); err == nil {
		return NewOpenAIClient(key, s.cfg.OpenAIModel, s.cfg.Temperature), nil
	} else if !errors.Is(err, vault.ErrNotFound) {
		return nil, err
	}

	if key, err := s.vault.RevealKind(ctx, userID, models.ServiceGemini); err == nil {
		return NewGeminiClient(key, s.cfg.GeminiModel, s.cfg.Temperature), nil
	} else if !errors.Is(err, vault.ErrNotFound) {
		return nil, err
	}

	return nil, ErrNoGenerationCredential
}

// GenerateDrafts creates the topic and one draft post per platform. Drafts
// stay out of the delivery loop until the user approves them.
func (s *Service) GenerateDrafts(ctx context.Context, userID uint, topicName string, platforms []models.Platform, tone models.Tone, extraContext string) (*models.Topic, []models.Post, error) {
	client, err := s.newClient(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	topic := models.Topic{
		UserID:      userID,
		Name:        topicName,
		Description: extraContext,
		Tone:        tone,
	}
	if err := s.db.WithContext(ctx).Create(&topic).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create topic: %w", err)
	}

	posts := make([]models.Post, 0, len(platforms))
	for _, platform := range platforms {
		result, err := client.Generate(ctx, Request{
			Topic:        topicName,
			Platform:     platform,
			Tone:         tone,
			ExtraContext: extraContext,
		})
		if err != nil {
			s.logger.Error("Content generation failed",
				zap.String("platform", string(platform)),
				zap.Uint("topic_id", topic.ID),
				zap.Error(err))
			return nil, nil, fmt.Errorf("generation for %s failed: %w", platform, err)
		}

		post := models.Post{
			UserID:   userID,
			TopicID:  topic.ID,
			Platform: platform,
			Content:  result.Content,
			Hashtags: strings.Join(result.Hashtags, ","),
			Tone:     tone,
			Status:   models.StatusDraft,
		}
		if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to save draft: %w", err)
		}
		posts = append(posts, post)
	}

	s.logger.Info("Drafts generated",
		zap.Uint("topic_id", topic.ID),
		zap.Int("count", len(posts)))
	return &topic, posts, nil
}

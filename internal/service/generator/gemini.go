package generator

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient generates content through the Gemini API.
type GeminiClient struct {
	apiKey      string
	model       string
	temperature float64
}

func NewGeminiClient(apiKey, model string, temperature float64) *GeminiClient {
	return &GeminiClient{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
	}
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Result, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	temperature := float32(c.temperature)
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: buildPrompt(req)},
			},
		},
	}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You are an expert social media content creator.", genai.RoleUser),
		Temperature:       &temperature,
	}

	result, err := client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	content := strings.TrimSpace(sb.String())
	return &Result{
		Content:  content,
		Hashtags: extractHashtags(content),
	}, nil
}

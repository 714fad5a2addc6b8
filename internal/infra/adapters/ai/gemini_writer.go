// File: internal/infra/adapters/ai/gemini_writer.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"telegram-premium-delivery/internal/domain/ports/adapter"
)

var _ adapter.SceneWriter = (*GeminiWriter)(nil)

type GeminiWriter struct {
	client *genai.Client
	model  string
}

// NewGeminiWriter uses the official SDK against the Gemini API backend.
func NewGeminiWriter(ctx context.Context, apiKey, baseURL, model string) (*GeminiWriter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" || strings.HasPrefix(model, "gpt") {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiWriter{client: c, model: model}, nil
}

func (g *GeminiWriter) Name() string { return "gemini" }

func (g *GeminiWriter) Scenes(ctx context.Context, theme string, count int) ([]string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(scenePrompt(theme, count)), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini scenes: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("gemini scenes: empty reply")
	}
	return parseScenes(text, count), nil
}

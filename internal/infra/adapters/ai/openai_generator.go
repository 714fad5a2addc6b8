package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"telegram-premium-delivery/internal/domain/ports/adapter"
)

var (
	_ adapter.SceneWriter   = (*OpenAIGenerator)(nil)
	_ adapter.ImageRenderer = (*OpenAIGenerator)(nil)
)

// OpenAIGenerator writes scene lists with chat completions and renders them with the images API.
type OpenAIGenerator struct {
	client     openai.Client
	textModel  string
	imageModel string
	character  string
}

type OpenAIOptions struct {
	TextModel  string
	ImageModel string
	Character  string
	BaseURL    string // empty = api.openai.com
	MaxRetries int
}

func NewOpenAIGenerator(apiKey string, o OpenAIOptions) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if o.TextModel == "" {
		o.TextModel = "gpt-4o-mini"
	}
	if o.ImageModel == "" {
		o.ImageModel = "dall-e-3"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(o.MaxRetries)}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	return &OpenAIGenerator{
		client:     openai.NewClient(opts...),
		textModel:  o.TextModel,
		imageModel: o.ImageModel,
		character:  o.Character,
	}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Scenes(ctx context.Context, theme string, count int) ([]string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.textModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(scenePrompt(theme, count)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai scenes: %w", err)
	}
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return parseScenes(c.Message.Content, count), nil
		}
	}
	return nil, errors.New("openai scenes: empty reply")
}

func (g *OpenAIGenerator) Render(ctx context.Context, scene string) (string, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         imagePrompt(g.character, scene),
		Model:          openai.ImageModel(g.imageModel),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("openai image: no url returned")
	}
	return resp.Data[0].URL, nil
}

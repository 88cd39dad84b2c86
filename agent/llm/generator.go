package llm

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
	openrouterx "github.com/tanpawarit/bizlens/pkg/openrouter"
)

// TextGenerator produces free text through the OpenAI SDK (pointed at
// OpenRouter). Structured decisions go through the eino graphs instead.
type TextGenerator struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ contractx.Generator = (*TextGenerator)(nil)

func NewTextGenerator(cfg openrouterx.Config) (*TextGenerator, error) {
	client := openrouterx.NewClient(cfg)
	if client == nil {
		return nil, fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}

	maxTokens := int64(2000)
	if cfg.MaxCompletionToken != nil && *cfg.MaxCompletionToken > 0 {
		maxTokens = int64(*cfg.MaxCompletionToken)
	}

	return &TextGenerator{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: float64(cfg.Temperature),
		maxTokens:   maxTokens,
	}, nil
}

func (g *TextGenerator) Generate(ctx context.Context, systemPrompt string, userPayload string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(g.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPayload),
		},
		Temperature: openaisdk.Float(g.temperature),
		MaxTokens:   openaisdk.Int(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: text generation: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: blank completion content", contractx.ErrModelInvoke)
	}
	return content, nil
}

package translator

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/config"
)

// ============================================================================
// OPENAI GENERATOR — Any OpenAI-compatible chat completions endpoint
// ============================================================================

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator implements Generator over the chat completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAI creates an OpenAI generator. BaseURL points it at a compatible
// server; without an API key a BaseURL is required.
func NewOpenAI(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.Model == "" || cfg.Model == defaultGeminiModel {
		cfg.Model = defaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		logger:      logger,
	}, nil
}

// Generate sends the history followed by the prompt as chat messages.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2*len(req.History)+1)
	for _, ex := range req.History {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex.Prompt},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: ex.Reply})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	text := resp.Choices[0].Message.Content
	g.logger.Debug("openai completion",
		zap.String("model", g.model),
		zap.Int("history", len(req.History)),
		zap.Int("bytes", len(text)),
		zap.Duration("latency", time.Since(start)))
	return text, nil
}

// Name returns the generator name.
func (g *OpenAIGenerator) Name() string {
	return "openai:" + g.model
}

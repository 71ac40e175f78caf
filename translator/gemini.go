package translator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spektr-org/chatyfile/config"
)

// ============================================================================
// GEMINI GENERATOR — Google Gemini via google.golang.org/genai
// ============================================================================

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator implements Generator using the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *zap.Logger
}

// NewGemini creates a Gemini generator. BaseURL overrides the API endpoint.
func NewGemini(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxOutputTokens),
		logger:      logger,
	}, nil
}

// Generate sends the history followed by the prompt as one conversation.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, 2*len(req.History)+1)
	for _, ex := range req.History {
		contents = append(contents,
			genai.NewContentFromText(ex.Prompt, genai.RoleUser),
			genai.NewContentFromText(ex.Reply, genai.RoleModel))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if g.maxTokens > 0 {
		gc.MaxOutputTokens = g.maxTokens
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := resp.Text()
	g.logger.Debug("gemini completion",
		zap.String("model", g.model),
		zap.Int("history", len(req.History)),
		zap.Int("bytes", len(text)),
		zap.Duration("latency", time.Since(start)))
	return text, nil
}

// Name returns the generator name.
func (g *GeminiGenerator) Name() string {
	return "gemini:" + g.model
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/leep66666/smart-job-assistant-backend/internal/ai"
	"github.com/leep66666/smart-job-assistant-backend/internal/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxLogLen = 200
)

// Generator wraps the Google GenAI client behind the ai.Generator contract.
type Generator struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Generator{client: client, modelName: model, logger: log}, nil
}

// Generate sends the request to Gemini and returns the first textual response.
func (g *Generator) Generate(ctx context.Context, req ai.Request) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		return "", errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	g.logger.Debug("gemini generate content request",
		zap.String("model", g.modelName),
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.String("prompt_preview", logger.TruncateForLog(user, defaultMaxLogLen)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", logger.TruncateForLog(output, defaultMaxLogLen)),
	)

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

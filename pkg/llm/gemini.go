package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/appforge-inc/forge-engine/pkg/logging"
)

// GeminiClient generates code through the Google Gemini API.
type GeminiClient struct {
	apiKey string
	model  string
	logger *zap.Logger

	// The genai client needs a context to construct, so it is created on
	// first use and shared across WithModel copies.
	mu     *sync.Mutex
	client **genai.Client
}

// NewGeminiClient creates a new Gemini-backed code generator.
func NewGeminiClient(apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var client *genai.Client
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
		logger: logger.Named("gemini"),
		mu:     &sync.Mutex{},
		client: &client,
	}, nil
}

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if *c.client != nil {
		return *c.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewError(ErrorTypeUpstream, "failed to create Gemini client", false, err)
	}

	*c.client = client
	return client, nil
}

// GenerateCode sends the prompt to Gemini and returns the raw response text.
func (c *GeminiClient) GenerateCode(ctx context.Context, prompt string, systemInstruction string) (string, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	c.logger.Debug("generation request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		c.logger.Error("generation request failed",
			zap.String("model", c.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		classified := ClassifyError(err)
		classified.Model = c.model
		return "", classified
	}

	text := result.Text()
	if text == "" {
		return "", &Error{
			Type:      ErrorTypeEmptyResponse,
			Message:   "no text in response",
			Retryable: true,
			Model:     c.model,
		}
	}

	c.logger.Info("generation request completed",
		zap.String("model", c.model),
		zap.Int("response_len", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// CheckQuota issues a minimal probe to verify the backend accepts traffic.
func (c *GeminiClient) CheckQuota(ctx context.Context) error {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return err
	}

	maxTokens := int32(1)
	_, err = client.Models.GenerateContent(ctx, c.model, genai.Text("ping"), &genai.GenerateContentConfig{
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = c.model
		return classified
	}

	return nil
}

// Model returns the model this client targets.
func (c *GeminiClient) Model() string {
	return c.model
}

// WithModel returns a client for a different model sharing the same
// underlying connection and credential.
func (c *GeminiClient) WithModel(model string) CodeGenerator {
	return &GeminiClient{
		apiKey: c.apiKey,
		model:  model,
		logger: c.logger,
		mu:     c.mu,
		client: c.client,
	}
}

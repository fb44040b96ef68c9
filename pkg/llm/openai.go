package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/appforge-inc/forge-engine/pkg/logging"
)

// OpenAIClient generates code through any OpenAI-compatible endpoint.
// The generation contract only needs text-in/text-out with quota signaling,
// so a vLLM or proxy endpoint works the same as the hosted API.
type OpenAIClient struct {
	client   *openai.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible code generator.
func NewOpenAIClient(endpoint, model, apiKey string, logger *zap.Logger) (*OpenAIClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimSuffix(endpoint, "/")

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: endpoint,
		model:    model,
		logger:   logger.Named("openai"),
	}, nil
}

// GenerateCode sends the prompt as a chat completion and returns the response text.
func (c *OpenAIClient) GenerateCode(ctx context.Context, prompt string, systemInstruction string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	c.logger.Debug("generation request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		c.logger.Error("generation request failed",
			zap.String("model", c.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		classified := ClassifyError(err)
		classified.Model = c.model
		return "", classified
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &Error{
			Type:      ErrorTypeEmptyResponse,
			Message:   "no choices in response",
			Retryable: true,
			Model:     c.model,
		}
	}

	content := resp.Choices[0].Message.Content

	c.logger.Info("generation request completed",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

// CheckQuota issues a minimal probe to verify the backend accepts traffic.
func (c *OpenAIClient) CheckQuota(ctx context.Context) error {
	_, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = c.model
		return classified
	}

	return nil
}

// Model returns the model this client targets.
func (c *OpenAIClient) Model() string {
	return c.model
}

// WithModel returns a client for a different model on the same endpoint.
func (c *OpenAIClient) WithModel(model string) CodeGenerator {
	return &OpenAIClient{
		client:   c.client,
		endpoint: c.endpoint,
		model:    model,
		logger:   c.logger,
	}
}

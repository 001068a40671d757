// -----------------------------------------------------------------------
// OpenAI Service - Summarizer backend using the Chat Completions API
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

// OpenAIService implements the Summarizer interface using OpenAI chat
// completions.
type OpenAIService struct {
	config  *common.LLMConfig
	logger  arbor.ILogger
	client  *openai.Client
	model   string
	timeout time.Duration
	retry   common.RetryPolicy
}

// Compile-time interface assertion
var _ interfaces.Summarizer = (*OpenAIService)(nil)

// NewOpenAIService creates a new OpenAI summarizer instance.
func NewOpenAIService(cfg *common.LLMConfig, retry common.RetryPolicy, logger arbor.ILogger) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the openai provider (set LLM_API_KEY or llm.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	service := &OpenAIService{
		config:  cfg,
		logger:  logger,
		client:  openai.NewClient(cfg.APIKey),
		model:   model,
		timeout: common.Duration(cfg.Timeout),
		retry:   retry,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", service.timeout).
		Msg("OpenAI summarizer initialized")
	return service, nil
}

// Summarize returns an abstractive summary of text.
func (s *OpenAIService) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return s.complete(ctx, summarySystemPrompt, summaryPrompt(truncate(text, maxInputOpenAI)), maxTokens)
}

// Keywords returns up to k keywords for text.
func (s *OpenAIService) Keywords(ctx context.Context, text string, k int) ([]string, error) {
	raw, err := s.complete(ctx, keywordsSystemPrompt, keywordsPrompt(truncate(text, maxInputOpenAI), k), 512)
	if err != nil {
		return nil, err
	}
	return parseKeywords(raw, k), nil
}

// Model returns the configured model name.
func (s *OpenAIService) Model() string {
	return s.model
}

// Close releases resources; the OpenAI client needs no explicit cleanup.
func (s *OpenAIService) Close() error {
	return nil
}

func (s *OpenAIService) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	start := time.Now()
	var out string
	err := s.retry.Do(ctx, IsRetryable, func() error {
		// Timeout is per attempt; ctx bounds the whole call.
		timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.CreateChatCompletion(timeoutCtx, openai.ChatCompletionRequest{
			Model:       s.model,
			MaxTokens:   maxTokens,
			Temperature: s.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return fmt.Errorf("OpenAI API call failed: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return fmt.Errorf("no response generated from OpenAI API")
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug().
		Int("prompt_length", len(prompt)).
		Int("response_length", len(out)).
		Dur("duration", time.Since(start)).
		Msg("OpenAI completion finished")

	return out, nil
}

// -----------------------------------------------------------------------
// Claude Service - Summarizer backend using the Anthropic Messages API
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

// ClaudeService implements the Summarizer interface using Anthropic Claude.
type ClaudeService struct {
	config  *common.LLMConfig
	logger  arbor.ILogger
	client  anthropic.Client
	model   string
	timeout time.Duration
	retry   common.RetryPolicy
}

// Compile-time interface assertion
var _ interfaces.Summarizer = (*ClaudeService)(nil)

// NewClaudeService creates a new Claude summarizer instance.
func NewClaudeService(cfg *common.LLMConfig, retry common.RetryPolicy, logger arbor.ILogger) (*ClaudeService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the anthropic provider (set LLM_API_KEY or llm.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	service := &ClaudeService{
		config:  cfg,
		logger:  logger,
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   model,
		timeout: common.Duration(cfg.Timeout),
		retry:   retry,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", service.timeout).
		Msg("Claude summarizer initialized")
	return service, nil
}

// Summarize returns an abstractive summary of text.
func (s *ClaudeService) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return s.complete(ctx, summarySystemPrompt, summaryPrompt(truncate(text, maxInputAnthropic)), maxTokens)
}

// Keywords returns up to k keywords for text.
func (s *ClaudeService) Keywords(ctx context.Context, text string, k int) ([]string, error) {
	raw, err := s.complete(ctx, keywordsSystemPrompt, keywordsPrompt(truncate(text, maxInputAnthropic), k), 512)
	if err != nil {
		return nil, err
	}
	return parseKeywords(raw, k), nil
}

// Model returns the configured model name.
func (s *ClaudeService) Model() string {
	return s.model
}

// Close releases resources; the Claude client needs no explicit cleanup.
func (s *ClaudeService) Close() error {
	return nil
}

func (s *ClaudeService) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	start := time.Now()
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	var out string
	err := s.retry.Do(ctx, IsRetryable, func() error {
		// Timeout is per attempt; ctx bounds the whole call.
		timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.Messages.New(timeoutCtx, params)
		if err != nil {
			return fmt.Errorf("Claude API call failed: %w", err)
		}

		var response strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				response.WriteString(block.Text)
			}
		}
		if response.Len() == 0 {
			return fmt.Errorf("no response generated from Claude API")
		}
		out = strings.TrimSpace(response.String())
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug().
		Int("prompt_length", len(prompt)).
		Int("response_length", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Claude completion finished")

	return out, nil
}

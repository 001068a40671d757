// -----------------------------------------------------------------------
// Gemini Service - Summarizer backend using Google GenAI
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

// GeminiService implements the Summarizer interface using Gemini models.
type GeminiService struct {
	config  *common.LLMConfig
	logger  arbor.ILogger
	client  *genai.Client
	model   string
	timeout time.Duration
	retry   common.RetryPolicy
}

// Compile-time interface assertion
var _ interfaces.Summarizer = (*GeminiService)(nil)

// NewGeminiService creates a new Gemini summarizer instance.
func NewGeminiService(cfg *common.LLMConfig, retry common.RetryPolicy, logger arbor.ILogger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini provider (set LLM_API_KEY or llm.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  cfg,
		logger:  logger,
		client:  client,
		model:   model,
		timeout: common.Duration(cfg.Timeout),
		retry:   retry,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", service.timeout).
		Msg("Gemini summarizer initialized")
	return service, nil
}

// Summarize returns an abstractive summary of text.
func (s *GeminiService) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return s.complete(ctx, summarySystemPrompt, summaryPrompt(truncate(text, maxInputGemini)), maxTokens)
}

// Keywords returns up to k keywords for text.
func (s *GeminiService) Keywords(ctx context.Context, text string, k int) ([]string, error) {
	raw, err := s.complete(ctx, keywordsSystemPrompt, keywordsPrompt(truncate(text, maxInputGemini), k), 512)
	if err != nil {
		return nil, err
	}
	return parseKeywords(raw, k), nil
}

// Model returns the configured model name.
func (s *GeminiService) Model() string {
	return s.model
}

// Close releases resources; the genai client needs no explicit cleanup.
func (s *GeminiService) Close() error {
	return nil
}

func (s *GeminiService) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	start := time.Now()
	config := &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(maxTokens),
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if s.config.Temperature > 0 {
		config.Temperature = genai.Ptr(s.config.Temperature)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	var out string
	err := s.retry.Do(ctx, IsRetryable, func() error {
		// Timeout is per attempt; ctx bounds the whole call.
		timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.Models.GenerateContent(timeoutCtx, s.model, contents, config)
		if err != nil {
			return fmt.Errorf("Gemini API call failed: %w", err)
		}

		var response strings.Builder
		if resp != nil {
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						response.WriteString(part.Text)
					}
				}
				if response.Len() > 0 {
					break
				}
			}
		}
		if response.Len() == 0 {
			return fmt.Errorf("no response generated from Gemini API")
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
		Msg("Gemini completion finished")

	return out, nil
}

// -----------------------------------------------------------------------
// LLM Provider - Shared prompts, input truncation and keyword parsing for
// the summarizer backends
// -----------------------------------------------------------------------

package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

// Supported provider names (AI_PROVIDER).
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Per-provider input budgets in bytes. Papers longer than the budget are
// truncated from the end; the front matter and introduction carry most of
// the summarizable signal.
const (
	maxInputOpenAI    = 8_000
	maxInputAnthropic = 100_000
	maxInputGemini    = 100_000
)

const summarySystemPrompt = "You are an expert research assistant. " +
	"Summarize academic papers accurately and concisely for a knowledge base. " +
	"Cover the problem, the method and the key findings. Respond with the summary only."

const keywordsSystemPrompt = "You are an expert research assistant. " +
	"Extract the most specific topical keywords from the given paper text. " +
	"Respond with a single comma-separated list, nothing else."

// NewSummarizer builds the configured provider backend. Each backend
// applies the shared retry policy around its API calls, so only failures
// that survive the in-process budget reach the queue.
func NewSummarizer(cfg *common.LLMConfig, retry common.RetryPolicy, logger arbor.ILogger) (interfaces.Summarizer, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIService(cfg, retry, logger)
	case ProviderAnthropic:
		return NewClaudeService(cfg, retry, logger)
	case ProviderGemini:
		return NewGeminiService(cfg, retry, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func summaryPrompt(text string) string {
	return "Summarize the following paper:\n\n---\n" + text + "\n---"
}

func keywordsPrompt(text string, k int) string {
	return fmt.Sprintf("Extract up to %d keywords from the following paper:\n\n---\n%s\n---", k, text)
}

// truncate cuts text to at most max bytes without splitting a line.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, '\n'); idx > max/2 {
		cut = cut[:idx]
	}
	return cut
}

// parseKeywords normalizes a model's keyword list: split on commas and
// newlines, strip bullets, drop empties, dedupe case-insensitively and cap
// at k entries in response order.
func parseKeywords(raw string, k int) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})

	seen := make(map[string]struct{}, len(fields))
	keywords := make([]string, 0, k)
	for _, field := range fields {
		kw := strings.Trim(strings.TrimSpace(field), "-*•. \t\"'")
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) == k {
			break
		}
	}
	return keywords
}

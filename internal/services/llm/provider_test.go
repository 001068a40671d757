package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/ternarybob/refnet/internal/common"
)

func testRetryPolicy() common.RetryPolicy {
	return common.RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffMax:  time.Millisecond,
	}
}

func TestParseKeywords(t *testing.T) {
	raw := "neural networks, Attention, neural networks,\n- transformers\n* NLP; attention, , machine translation"
	keywords := parseKeywords(raw, 4)
	assert.Equal(t, []string{"neural networks", "Attention", "transformers", "NLP"}, keywords)
}

func TestParseKeywordsEmpty(t *testing.T) {
	assert.Empty(t, parseKeywords("", 5))
	assert.Empty(t, parseKeywords(", ,\n;", 5))
}

func TestParseKeywordsCapsAtK(t *testing.T) {
	keywords := parseKeywords("a, b, c, d, e", 3)
	assert.Len(t, keywords, 3)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))

	long := strings.Repeat("line of paper text\n", 1000)
	cut := truncate(long, 8_000)
	assert.LessOrEqual(t, len(cut), 8_000)
	// Cuts on a line boundary, not mid-word.
	assert.True(t, strings.HasSuffix(cut, "line of paper text"))
}

func TestNewSummarizerUnknownProvider(t *testing.T) {
	_, err := NewSummarizer(&common.LLMConfig{Provider: "ollama"}, testRetryPolicy(), common.GetLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestNewSummarizerRequiresAPIKey(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		_, err := NewSummarizer(&common.LLMConfig{Provider: provider, Timeout: "30s"}, testRetryPolicy(), common.GetLogger())
		assert.Error(t, err, provider)
	}
}

func TestNewSummarizerDefaultsModel(t *testing.T) {
	svc, err := NewOpenAIService(&common.LLMConfig{
		Provider: ProviderOpenAI,
		APIKey:   "test-key",
		Timeout:  "30s",
	}, testRetryPolicy(), common.GetLogger())
	require.NoError(t, err)
	defer svc.Close()
	assert.NotEmpty(t, svc.Model())
}

func TestIsRetryableClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"openai rate limit", &openai.APIError{HTTPStatusCode: 429}, true},
		{"openai server error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"openai bad key", &openai.APIError{HTTPStatusCode: 401}, false},
		{"openai request error", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, true},
		{"anthropic overloaded", &anthropic.Error{StatusCode: 529}, true},
		{"anthropic invalid request", &anthropic.Error{StatusCode: 400}, false},
		{"gemini unavailable", genai.APIError{Code: 500}, true},
		{"gemini permission denied", genai.APIError{Code: 403}, false},
		{"wrapped provider error", fmt.Errorf("OpenAI API call failed: %w", &openai.APIError{HTTPStatusCode: 500}), true},
		{"attempt timeout", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"empty completion", errors.New("no response generated from OpenAI API"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetryable(tc.err), tc.name)
	}
}

// -----------------------------------------------------------------------
// LLM Errors - Provider failure classification for the retry policy
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"errors"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// IsRetryable reports whether a summarizer failure is worth another
// attempt: rate limits, provider 5xx and network faults are; auth and
// request errors are not. A per-attempt timeout counts as retryable, the
// overall job context may still be live.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var openaiAPIErr *openai.APIError
	if errors.As(err, &openaiAPIErr) {
		return retryableStatus(openaiAPIErr.HTTPStatusCode)
	}
	var openaiReqErr *openai.RequestError
	if errors.As(err, &openaiReqErr) {
		return retryableStatus(openaiReqErr.HTTPStatusCode)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(anthropicErr.StatusCode)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}

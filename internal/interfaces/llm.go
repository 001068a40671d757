package interfaces

import "context"

// Summarizer produces an abstractive summary and keywords for extracted
// paper text. Implementations truncate input to their provider's byte
// budget before sending.
type Summarizer interface {
	// Summarize returns an abstractive summary of text.
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)

	// Keywords returns up to k keywords for text, deduplicated
	// case-insensitively with empties dropped.
	Keywords(ctx context.Context, text string, k int) ([]string, error)

	// Model returns the provider model identifier recorded with summaries.
	Model() string

	// Close releases provider resources.
	Close() error
}

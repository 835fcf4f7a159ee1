// Package providers implements streaming LLM provider support with a unified
// interface.
//
// A provider turns one completion call into a lazy channel of text fragments.
// The channel is unbuffered: the provider suspends on every fragment until the
// consumer pulls it, which is what gives the debate pipeline its backpressure.
// Streams always end with exactly one terminal chunk carrying a finish reason
// or an error, so callers can distinguish a normal end from a failure.
package providers

import (
	"context"

	"github.com/parleyhq/parley/types"
)

// ChatRequest represents one completion request to a provider.
type ChatRequest struct {
	System           string          `json:"system"`
	Messages         []types.Message `json:"messages"`
	Temperature      float32         `json:"temperature"`
	MaxTokens        int             `json:"max_tokens"`
	PresencePenalty  float32         `json:"presence_penalty,omitempty"`
	FrequencyPenalty float32         `json:"frequency_penalty,omitempty"`
}

// ProviderDefaults holds default generation parameters applied when a request
// leaves them zero.
type ProviderDefaults struct {
	Temperature float32
	MaxTokens   int
}

// Provider is the contract for streaming chat providers.
type Provider interface {
	ID() string

	// ChatStream starts a completion and returns an unbuffered channel of
	// chunks, one per fragment received from the upstream API. The channel
	// is closed after the terminal chunk.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)

	SupportsStreaming() bool

	// Close cleans up provider resources (e.g., HTTP connections).
	Close() error
}

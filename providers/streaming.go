package providers

// Terminal finish reasons reported in the last chunk of a stream.
const (
	FinishStop      = "stop"
	FinishCancelled = "cancelled"
	FinishError     = "error"
)

// StreamChunk represents one fragment of a streaming completion with metadata.
type StreamChunk struct {
	// Content is the accumulated content so far
	Content string `json:"content"`

	// Delta is the new content in this chunk
	Delta string `json:"delta"`

	// TokenCount is the total number of fragments so far
	TokenCount int `json:"token_count"`

	// FinishReason is nil until the stream is complete.
	// Values: "stop", "cancelled", "error"
	FinishReason *string `json:"finish_reason,omitempty"`

	// Error is set if an error occurred during streaming
	Error error `json:"error,omitempty"`
}

// Terminal reports whether this chunk ends the stream.
func (c StreamChunk) Terminal() bool {
	return c.FinishReason != nil || c.Error != nil
}

// Failed reports whether this chunk ends the stream due to an error.
func (c StreamChunk) Failed() bool {
	return c.Error != nil || (c.FinishReason != nil && *c.FinishReason == FinishError)
}

// ptr is a helper to get a pointer to a string
func ptr(s string) *string {
	return &s
}

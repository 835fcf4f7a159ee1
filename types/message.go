package types

// Message represents a single role-tagged message in a model conversation.
// This is the canonical message type passed to providers.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // Message content
}

package providers

import (
	"context"
	"errors"
	"sync"
)

// ErrNoScript is returned when a scripted provider has no turns configured.
var ErrNoScript = errors.New("mock provider has no scripted turns")

// MockTurn scripts one ChatStream call of a MockProvider: the fragments to
// emit, and optionally an error injected after FailAfter fragments.
type MockTurn struct {
	// Fragments are emitted one chunk per entry, in order.
	Fragments []string

	// Err, when set, terminates the stream with an error chunk after
	// FailAfter fragments have been emitted.
	Err       error
	FailAfter int
}

// MockProvider is a deterministic scripted provider for tests and
// development. Each ChatStream call consumes the next scripted turn; when the
// script is exhausted the last turn is replayed. It emits fragments on an
// unbuffered channel, one chunk per fragment, exactly like a live provider.
type MockProvider struct {
	id    string
	turns []MockTurn

	mu   sync.Mutex
	next int
}

// NewMockProvider creates a mock provider with a fixed single-fragment
// response for every call.
func NewMockProvider(id, response string) *MockProvider {
	return NewScriptedProvider(id, MockTurn{Fragments: []string{response}})
}

// NewScriptedProvider creates a mock provider that plays the given turns in
// order, one per ChatStream call.
func NewScriptedProvider(id string, turns ...MockTurn) *MockProvider {
	return &MockProvider{id: id, turns: turns}
}

// ID returns the provider ID.
func (m *MockProvider) ID() string {
	return m.id
}

// SupportsStreaming returns true.
func (m *MockProvider) SupportsStreaming() bool {
	return true
}

// Close is a no-op for the mock provider.
func (m *MockProvider) Close() error {
	return nil
}

// Calls returns how many ChatStream calls have been made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// ChatStream plays the next scripted turn as a stream of chunks.
func (m *MockProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if len(m.turns) == 0 {
		return nil, ErrNoScript
	}

	m.mu.Lock()
	idx := m.next
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	m.next++
	turn := m.turns[idx]
	m.mu.Unlock()

	outChan := make(chan StreamChunk)

	go func() {
		defer close(outChan)

		accumulated := ""
		for i, frag := range turn.Fragments {
			if turn.Err != nil && i == turn.FailAfter {
				outChan <- StreamChunk{
					Content:      accumulated,
					TokenCount:   i,
					Error:        turn.Err,
					FinishReason: ptr(FinishError),
				}
				return
			}

			select {
			case <-ctx.Done():
				outChan <- StreamChunk{
					Content:      accumulated,
					TokenCount:   i,
					Error:        ctx.Err(),
					FinishReason: ptr(FinishCancelled),
				}
				return
			default:
			}

			accumulated += frag
			outChan <- StreamChunk{
				Content:    accumulated,
				Delta:      frag,
				TokenCount: i + 1,
			}
		}

		if turn.Err != nil && turn.FailAfter >= len(turn.Fragments) {
			outChan <- StreamChunk{
				Content:      accumulated,
				TokenCount:   len(turn.Fragments),
				Error:        turn.Err,
				FinishReason: ptr(FinishError),
			}
			return
		}

		outChan <- StreamChunk{
			Content:      accumulated,
			TokenCount:   len(turn.Fragments),
			FinishReason: ptr(FinishStop),
		}
	}()

	return outChan, nil
}

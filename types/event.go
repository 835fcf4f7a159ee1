package types

// EventType identifies the kind of event emitted by the streaming pipeline.
type EventType string

// The exhaustive wire vocabulary. Every frame sent to a client carries
// exactly one of these discriminators.
const (
	// EventStartDebate brackets the beginning of the whole exchange.
	EventStartDebate EventType = "start_debate"
	// EventRoundStart marks the beginning of a round.
	EventRoundStart EventType = "round_start"
	// EventMessageStart marks the beginning of one participant's turn.
	EventMessageStart EventType = "message_start"
	// EventToken carries one text fragment of a turn in progress.
	EventToken EventType = "token"
	// EventTokenEnd marks the end of a turn's token stream. Emitted only
	// when at least one token was produced.
	EventTokenEnd EventType = "token_end"
	// EventMessageComplete marks the successful end of a turn.
	EventMessageComplete EventType = "message_complete"
	// EventRoundComplete marks the successful end of a round.
	EventRoundComplete EventType = "round_complete"
	// EventDebateComplete brackets the successful end of the exchange.
	EventDebateComplete EventType = "debate_complete"
	// EventError is the single terminal frame of a failed turn, round or debate.
	EventError EventType = "error"
)

// Event is the wire unit emitted by the streaming pipeline: a discriminated
// record produced once per pipeline step and never reused.
type Event struct {
	Type    EventType      `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

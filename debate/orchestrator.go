// Package debate drives a multi-party, turn-based generation exchange and
// streams it as an ordered sequence of structured events.
//
// One debate runs as a single producer goroutine layered as
// debate → round → turn → token. Events go out on one unbuffered channel;
// the consumer's pull rate is the only flow control, and cancelling the
// context stops production at the next event or pacing delay. The transcript
// and history are owned exclusively by the running orchestrator and are safe
// to read once the event channel has closed.
package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/metrics/prometheus"
	"github.com/parleyhq/parley/providers"
	"github.com/parleyhq/parley/types"
)

// Pacing constants. The delays keep back-to-back frames from overwhelming
// the downstream transport; they carry no correctness dependency.
const (
	interTurnDelay  = 500 * time.Millisecond
	interRoundDelay = 500 * time.Millisecond
)

// Generation penalties pinned for all turns, matching the debate style of
// discouraging repetition across rounds.
const (
	presencePenalty  = 0.6
	frequencyPenalty = 0.6
)

// Orchestrator sequences the rounds and turns of one debate. It owns the
// growing shared transcript and the per-participant response history for the
// duration of the run; neither is shared across concurrent debates.
type Orchestrator struct {
	provider providers.Provider
	debateID string
	topic    string
	config   types.DebateConfig

	transcript strings.Builder
	history    []string

	// overridable in tests to avoid real pacing
	turnDelay  time.Duration
	roundDelay time.Duration
}

// New creates an orchestrator for one debate run. The config must already be
// validated; sessions with invalid configs never reach this layer.
func New(provider providers.Provider, debateID, topic string, config types.DebateConfig) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		debateID:   debateID,
		topic:      topic,
		config:     config,
		turnDelay:  interTurnDelay,
		roundDelay: interRoundDelay,
	}
}

// Transcript returns the cumulative text record of all completed turns.
// Valid once the event channel returned by Run has closed.
func (o *Orchestrator) Transcript() string {
	return o.transcript.String()
}

// History returns each participant's full response text in turn-completion
// order. Valid once the event channel returned by Run has closed.
func (o *Orchestrator) History() []string {
	return o.history
}

// Run starts the debate and returns the event channel. The channel is
// unbuffered and closed exactly once, after the terminal event
// (debate_complete or error). Cancelling ctx stops event production.
func (o *Orchestrator) Run(ctx context.Context) <-chan types.Event {
	out := make(chan types.Event)
	go o.run(ctx, out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, out chan<- types.Event) {
	defer close(out)

	// Top-level failure boundary: anything escaping the layers below
	// becomes a terminal error event instead of a silently closed stream.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("debate pipeline panic", "debate_id", o.debateID, "panic", r)
			o.emit(ctx, out, types.Event{
				Type:    types.EventError,
				Message: "Error in debate generation",
			})
		}
	}()

	logger.DebateStarted(o.debateID, o.topic, o.config.NumRounds, o.config.NumDebaters)

	o.transcript.WriteString(fmt.Sprintf("Debate topic: %s\n\n", o.topic))

	if !o.emit(ctx, out, types.Event{Type: types.EventStartDebate, Message: "Starting debate"}) {
		return
	}

	for round := 0; round < o.config.NumRounds; round++ {
		if round > 0 && !o.pause(ctx, o.roundDelay) {
			return
		}
		if !o.runRound(ctx, out, round) {
			return
		}
	}

	if o.emit(ctx, out, types.Event{Type: types.EventDebateComplete, Message: "Debate complete"}) {
		logger.DebateCompleted(o.debateID, len(o.history))
	}
}

// runRound drives all participants of one round in index order. It returns
// false when the round failed or the consumer went away; a failed round
// aborts the remainder of the debate.
func (o *Orchestrator) runRound(ctx context.Context, out chan<- types.Event, round int) bool {
	if !o.emit(ctx, out, types.Event{
		Type:    types.EventRoundStart,
		Message: fmt.Sprintf("Round %d", round+1),
		Data:    map[string]any{"round": round + 1},
	}) {
		return false
	}

	for debater := 0; debater < o.config.NumDebaters; debater++ {
		if debater > 0 && !o.pause(ctx, o.turnDelay) {
			return false
		}

		text, ok := o.runTurn(ctx, out, round, debater)
		if !ok {
			return false
		}

		// Each subsequent turn's prompt is built from the transcript as it
		// stands after this append; turns are strictly sequential.
		o.transcript.WriteString(fmt.Sprintf("Debater %d: %s\n", debater+1, text))
		o.history = append(o.history, text)
	}

	return o.emit(ctx, out, types.Event{
		Type:    types.EventRoundComplete,
		Message: fmt.Sprintf("Round %d complete", round+1),
		Data:    map[string]any{"round": round + 1},
	})
}

// runTurn produces the full event sequence for one participant's single
// contribution and returns the accumulated text out-of-band. A failed turn
// returns ok=false after emitting exactly one error event; its partial text
// is discarded so retried debates see a reproducible transcript.
func (o *Orchestrator) runTurn(ctx context.Context, out chan<- types.Event, round, debater int) (string, bool) {
	start := time.Now()

	if !o.emit(ctx, out, types.Event{
		Type:    types.EventMessageStart,
		Message: fmt.Sprintf("Response %d", debater+1),
		Data:    map[string]any{"round": round + 1, "debater": debater + 1},
	}) {
		return "", false
	}

	prompt := fmt.Sprintf(
		"%s\nPresent your argument for round %d as Debater %d. Consider previous arguments and develop the discussion.",
		o.transcript.String(), round+1, debater+1,
	)

	req := providers.ChatRequest{
		System:           o.config.SystemPrompts[debater].Content,
		Messages:         []types.Message{{Role: "user", Content: prompt}},
		Temperature:      o.config.Temperature,
		MaxTokens:        o.config.MaxTokensPerResponse,
		PresencePenalty:  presencePenalty,
		FrequencyPenalty: frequencyPenalty,
	}

	logger.LLMCall(o.provider.ID(), o.config.SystemPrompts[debater].Role,
		len(req.Messages), float64(req.Temperature),
		"debate_id", o.debateID, "round", round+1, "debater", debater+1)

	stream, err := o.provider.ChatStream(ctx, req)
	if err != nil {
		logger.TurnFailed(o.debateID, round+1, debater+1, err)
		prometheus.RecordTurn(prometheus.StatusError, time.Since(start).Seconds())
		o.emit(ctx, out, types.Event{
			Type:    types.EventError,
			Message: "Error generating response",
			Data:    map[string]any{"round": round + 1, "debater": debater + 1},
		})
		return "", false
	}

	accumulated := ""
	tokens := 0
	failed := false

	for chunk := range stream {
		if chunk.Failed() {
			failed = true
			logger.TurnFailed(o.debateID, round+1, debater+1, chunk.Error)
			break
		}
		if chunk.Delta != "" {
			accumulated = chunk.Content
			tokens++
			if !o.emit(ctx, out, types.Event{Type: types.EventToken, Message: chunk.Delta}) {
				o.drain(stream)
				return "", false
			}
		}
		if chunk.Terminal() {
			break
		}
	}
	o.drain(stream)

	if failed {
		prometheus.RecordTurn(prometheus.StatusError, time.Since(start).Seconds())
		o.emit(ctx, out, types.Event{
			Type:    types.EventError,
			Message: "Error generating response",
			Data:    map[string]any{"round": round + 1, "debater": debater + 1},
		})
		return "", false
	}

	if tokens > 0 {
		if !o.emit(ctx, out, types.Event{Type: types.EventTokenEnd, Message: ""}) {
			return "", false
		}
	}

	ok := o.emit(ctx, out, types.Event{
		Type:    types.EventMessageComplete,
		Message: fmt.Sprintf("Message %d complete", debater+1),
		Data:    map[string]any{"round": round + 1, "debater": debater + 1},
	})

	prometheus.RecordTurn(prometheus.StatusSuccess, time.Since(start).Seconds())
	logger.Debug("turn complete",
		"debate_id", o.debateID, "round", round+1, "debater", debater+1,
		"tokens", tokens, "duration", time.Since(start))

	return accumulated, ok
}

// emit sends one event, suspending until the consumer pulls it. It returns
// false when the consumer is gone.
func (o *Orchestrator) emit(ctx context.Context, out chan<- types.Event, ev types.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// pause applies a pacing delay, returning false if cancelled mid-wait.
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain consumes any chunks left on a provider stream so its goroutine can
// exit and release the underlying connection.
func (o *Orchestrator) drain(stream <-chan providers.StreamChunk) {
	for range stream {
	}
}

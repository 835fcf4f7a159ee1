// Package types defines the canonical data model for debates: configuration,
// scoring, results, and the wire-level event vocabulary.
package types

import (
	"errors"
	"fmt"
)

// Configuration bounds. Configs outside these ranges are rejected before a
// session is created.
const (
	MinRounds   = 1
	MaxRounds   = 10
	MinDebaters = 2
	MaxDebaters = 4
	MinTokens   = 100
	MaxTokens   = 2000
)

// ErrInvalidConfig is the sentinel wrapped by all DebateConfig validation failures.
var ErrInvalidConfig = errors.New("invalid debate config")

// SystemPrompt assigns a role label and instruction text to one participant slot.
// Immutable once a session starts.
type SystemPrompt struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DebateConfig holds the generation parameters for one debate.
type DebateConfig struct {
	NumRounds            int            `json:"numRounds"`
	NumDebaters          int            `json:"numDebaters"`
	Temperature          float32        `json:"temperature"`
	MaxTokensPerResponse int            `json:"maxTokensPerResponse"`
	SystemPrompts        []SystemPrompt `json:"systemPrompts"`
	DebateStyle          string         `json:"debateStyle"`
}

// Validate checks the config bounds and the prompts/debaters invariant.
// All violations wrap ErrInvalidConfig.
func (c DebateConfig) Validate() error {
	if c.NumRounds < MinRounds || c.NumRounds > MaxRounds {
		return fmt.Errorf("%w: numRounds must be %d-%d, got %d", ErrInvalidConfig, MinRounds, MaxRounds, c.NumRounds)
	}
	if c.NumDebaters < MinDebaters || c.NumDebaters > MaxDebaters {
		return fmt.Errorf("%w: numDebaters must be %d-%d, got %d", ErrInvalidConfig, MinDebaters, MaxDebaters, c.NumDebaters)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: temperature must be 0-1, got %v", ErrInvalidConfig, c.Temperature)
	}
	if c.MaxTokensPerResponse < MinTokens || c.MaxTokensPerResponse > MaxTokens {
		return fmt.Errorf("%w: maxTokensPerResponse must be %d-%d, got %d", ErrInvalidConfig, MinTokens, MaxTokens, c.MaxTokensPerResponse)
	}
	if len(c.SystemPrompts) != c.NumDebaters {
		return fmt.Errorf("%w: %d system prompts for %d debaters", ErrInvalidConfig, len(c.SystemPrompts), c.NumDebaters)
	}
	return nil
}

// Score is one participant's structured rating across five bounded categories.
// All values are 1-10, produced by an external judge.
type Score struct {
	Reasoning      int `json:"reasoning"`
	Evidence       int `json:"evidence"`
	Clarity        int `json:"clarity"`
	Persuasiveness int `json:"persuasiveness"`
	Honesty        int `json:"honesty"`
}

// Categories returns the per-category values keyed by category name,
// in the form used for index-summary averaging.
func (s Score) Categories() map[string]int {
	return map[string]int{
		"reasoning":      s.Reasoning,
		"evidence":       s.Evidence,
		"clarity":        s.Clarity,
		"persuasiveness": s.Persuasiveness,
		"honesty":        s.Honesty,
	}
}

// Validate checks that every category is within 1-10.
func (s Score) Validate() error {
	for name, v := range s.Categories() {
		if v < 1 || v > 10 {
			return fmt.Errorf("score %s must be 1-10, got %d", name, v)
		}
	}
	return nil
}

// DebateScore is one participant's judged outcome.
type DebateScore struct {
	DebaterID string `json:"debaterId"`
	Ranking   int    `json:"ranking"`
	Scores    Score  `json:"scores"`
	Feedback  string `json:"feedback"`
}

// DebateResult is the durable record of one completed debate. It is created
// once at debate completion and never mutated after persistence.
type DebateResult struct {
	DebateID     string        `json:"debateId"`
	Topic        string        `json:"topic"`
	Timestamp    int64         `json:"timestamp"` // unix milliseconds
	Config       DebateConfig  `json:"config"`
	Scores       []DebateScore `json:"scores"`
	FinalRanking []string      `json:"finalRanking"` // winner first
	JudgeNotes   string        `json:"judgeNotes"`
}

// Validate checks the result is persistable: identity, at least one score,
// a non-empty ranking, and in-bounds category scores.
func (r DebateResult) Validate() error {
	if r.DebateID == "" {
		return errors.New("result missing debateId")
	}
	if len(r.Scores) == 0 {
		return errors.New("result has no scores")
	}
	if len(r.FinalRanking) == 0 {
		return errors.New("result has no final ranking")
	}
	for _, ds := range r.Scores {
		if err := ds.Scores.Validate(); err != nil {
			return fmt.Errorf("debater %s: %w", ds.DebaterID, err)
		}
	}
	return nil
}

// DebateMessage is one participant's full response as reconstructed for display.
type DebateMessage struct {
	ID         int    `json:"id"`
	Response   string `json:"response"`
	IsComplete bool   `json:"isComplete"`
	DebaterID  string `json:"debaterId"`
}

// MessageGroup groups one round's messages for display.
type MessageGroup struct {
	ID       int             `json:"id"`
	Messages []DebateMessage `json:"messages"`
}

// GroupHistory reconstructs per-round message groups from the flat
// turn-completion-order history. A trailing partial round (from an aborted
// debate) forms a final, shorter group.
func GroupHistory(history []string, numDebaters int) []MessageGroup {
	if numDebaters < 1 {
		return nil
	}
	var groups []MessageGroup
	for i := 0; i < len(history); i += numDebaters {
		end := i + numDebaters
		if end > len(history) {
			end = len(history)
		}
		group := MessageGroup{ID: len(groups)}
		for j, resp := range history[i:end] {
			group.Messages = append(group.Messages, DebateMessage{
				ID:         i + j,
				Response:   resp,
				IsComplete: true,
				DebaterID:  fmt.Sprintf("debater_%d", j+1),
			})
		}
		groups = append(groups, group)
	}
	return groups
}

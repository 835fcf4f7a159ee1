package prometheus

import (
	"github.com/parleyhq/parley/types"
)

// Status constants for metric labels.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusSuccess   = "success"
	StatusError     = "error"
)

// Observe records one emitted debate event. It is called once per event on
// the streaming path, so it only touches counters.
func Observe(event types.Event) {
	RecordEventEmitted(string(event.Type))
	if event.Type == types.EventToken {
		RecordTokensStreamed(1)
	}
}

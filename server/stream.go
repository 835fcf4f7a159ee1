package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/debate"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/metrics/prometheus"
	"github.com/parleyhq/parley/session"
	"github.com/parleyhq/parley/types"
)

// upgrader accepts WebSocket upgrades. Origin enforcement happens in the
// CORS layer; the upgrade itself is permissive.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// eventSink delivers one encoded event frame to a connected client.
type eventSink func(data []byte) error

// handleStream runs the session's debate and streams its events as SSE
// frames. The debate starts when this endpoint is opened and stops when the
// client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if !s.debateSem.TryAcquire(1) {
		writeError(w, http.StatusServiceUnavailable, "too many concurrent debates")
		return
	}
	defer s.debateSem.Release(1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	prometheus.RecordStreamClientConnected("sse")
	defer prometheus.RecordStreamClientDisconnected("sse")

	s.runDebate(r.Context(), sess, func(data []byte) error {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
}

// handleWebSocket runs the session's debate over a WebSocket, one JSON text
// message per event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	if !s.debateSem.TryAcquire(1) {
		writeError(w, http.StatusServiceUnavailable, "too many concurrent debates")
		return
	}
	defer s.debateSem.Release(1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Debug("websocket upgrade failed", "debate_id", sess.ID, "error", err)
		return
	}
	defer conn.Close()

	prometheus.RecordStreamClientConnected("websocket")
	defer prometheus.RecordStreamClientDisconnected("websocket")

	// A client close must cancel the pipeline the same way an SSE disconnect
	// does. The read loop is the only place a websocket learns about closes.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	s.runDebate(ctx, sess, func(data []byte) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

// lookupSession resolves the path identity to a session, writing the error
// response itself when it cannot.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.DebateSession, bool) {
	id := r.PathValue("id")
	sess, err := s.registry.Lookup(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidID) {
			writeError(w, http.StatusNotFound, "unknown debate: %s", id)
			return nil, false
		}
		logger.Error("session lookup failed", "debate_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return nil, false
	}
	return sess, true
}

// runDebate drives one debate pipeline and forwards every event to the sink.
// It returns when the pipeline closes its channel or the sink fails, and
// records the debate outcome either way.
func (s *Server) runDebate(ctx context.Context, sess *session.DebateSession, sink eventSink) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	prometheus.RecordDebateStart()

	orch := debate.New(s.provider, sess.ID, sess.Topic, sess.Config)
	events := orch.Run(ctx)

	status := prometheus.StatusCancelled
	for event := range events {
		prometheus.Observe(event)

		switch event.Type {
		case types.EventDebateComplete:
			status = prometheus.StatusCompleted
		case types.EventError:
			status = prometheus.StatusFailed
		}

		data, err := json.Marshal(event)
		if err != nil {
			logger.Error("failed to encode event", "debate_id", sess.ID, "error", err)
			continue
		}
		if err := sink(data); err != nil {
			logger.Info("stream consumer disconnected", "debate_id", sess.ID, "error", err)
			cancel()
			// Drain so the producer goroutine exits.
			for range events {
			}
			break
		}
	}

	prometheus.RecordDebateEnd(status, time.Since(start).Seconds())
	logger.Info("debate stream closed",
		"debate_id", sess.ID, "status", status, "duration", time.Since(start))
}

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/providers"
	"github.com/parleyhq/parley/resultstore"
	"github.com/parleyhq/parley/session"
	"github.com/parleyhq/parley/types"
)

func validRequestBody(t *testing.T, rounds, debaters int) []byte {
	t.Helper()
	prompts := make([]types.SystemPrompt, debaters)
	for i := range prompts {
		prompts[i] = types.SystemPrompt{Role: "debater", Content: "Argue your position."}
	}
	body, err := json.Marshal(createDebateRequest{
		Prompt: "Should cities ban cars?",
		Config: types.DebateConfig{
			NumRounds:            rounds,
			NumDebaters:          debaters,
			Temperature:          0.7,
			MaxTokensPerResponse: 300,
			SystemPrompts:        prompts,
			DebateStyle:          "structured",
		},
	})
	require.NoError(t, err)
	return body
}

func newTestServer(t *testing.T, provider providers.Provider, opts ...ServerOption) *Server {
	t.Helper()
	reg := session.NewMemoryRegistry()
	t.Cleanup(func() { reg.Close() })
	return NewServer(provider, append([]ServerOption{WithRegistry(reg)}, opts...)...)
}

// createDebate drives POST /debates and returns the new identity.
func createDebate(t *testing.T, handler http.Handler, body []byte) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/debates", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["debate_id"])
	return resp["debate_id"]
}

// decodeSSE parses the data frames out of an SSE body.
func decodeSSE(t *testing.T, body string) []types.Event {
	t.Helper()
	var events []types.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []types.Event) []types.EventType {
	out := make([]types.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestCreateDebate(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))
	id := createDebate(t, srv.Handler(), validRequestBody(t, 1, 2))
	assert.NotEmpty(t, id)
}

func TestCreateDebateRejectsOutOfBoundsConfig(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))

	body := validRequestBody(t, 1, 2)
	body = bytes.Replace(body, []byte(`"numRounds":1`), []byte(`"numRounds":99`), 1)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debates", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "numRounds")
}

func TestCreateDebateRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debates",
		strings.NewReader(`{"prompt": "topic only"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "config")
}

func TestCreateDebateRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debates",
		strings.NewReader(`{"prompt": `)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamUnknownDebate(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debates/nope/stream", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown debate")
}

func TestStreamRunsFullDebate(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "I agree."))
	handler := srv.Handler()
	id := createDebate(t, handler, validRequestBody(t, 1, 2))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debates/"+id+"/stream", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := decodeSSE(t, rec.Body.String())
	assert.Equal(t, []types.EventType{
		types.EventStartDebate,
		types.EventRoundStart,
		types.EventMessageStart,
		types.EventToken,
		types.EventTokenEnd,
		types.EventMessageComplete,
		types.EventMessageStart,
		types.EventToken,
		types.EventTokenEnd,
		types.EventMessageComplete,
		types.EventRoundComplete,
		types.EventDebateComplete,
	}, eventTypes(events))
}

func TestStreamFailedTurnEndsWithErrorEvent(t *testing.T) {
	provider := providers.NewScriptedProvider("mock",
		providers.MockTurn{Fragments: []string{"fine"}},
		providers.MockTurn{Err: context.DeadlineExceeded, FailAfter: 0},
	)
	srv := newTestServer(t, provider)
	handler := srv.Handler()
	id := createDebate(t, handler, validRequestBody(t, 1, 2))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debates/"+id+"/stream", nil))

	events := decodeSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, types.EventError, events[len(events)-1].Type)
	for _, ev := range events {
		assert.NotEqual(t, types.EventDebateComplete, ev.Type)
	}
}

func TestStreamSaturatedReturns503(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"),
		WithMaxConcurrentDebates(1))
	handler := srv.Handler()
	id := createDebate(t, handler, validRequestBody(t, 1, 2))

	// Hold the only slot so the stream request finds the server saturated.
	require.True(t, srv.debateSem.TryAcquire(1))
	defer srv.debateSem.Release(1)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debates/"+id+"/stream", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResultPersistedAndIndexed(t *testing.T) {
	store, err := resultstore.NewStore(t.TempDir())
	require.NoError(t, err)

	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"),
		WithResultStore(store))
	handler := srv.Handler()
	id := createDebate(t, handler, validRequestBody(t, 1, 2))

	result := types.DebateResult{
		Topic:     "Should cities ban cars?",
		Timestamp: time.Now().UnixMilli(),
		Scores: []types.DebateScore{
			{DebaterID: "debater_1", Ranking: 1, Scores: types.Score{Reasoning: 8, Evidence: 8, Clarity: 8, Persuasiveness: 8, Honesty: 8}},
			{DebaterID: "debater_2", Ranking: 2, Scores: types.Score{Reasoning: 6, Evidence: 6, Clarity: 6, Persuasiveness: 6, Honesty: 6}},
		},
		FinalRanking: []string{"debater_1", "debater_2"},
	}
	body, err := json.Marshal(result)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debates/"+id+"/result", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := store.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].DebateID)
	assert.Equal(t, "debater_1", entries[0].Winner)
	assert.Equal(t, 7.0, entries[0].AverageScores["reasoning"])
}

func TestResultUnknownDebate(t *testing.T) {
	store, err := resultstore.NewStore(t.TempDir())
	require.NoError(t, err)
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"),
		WithResultStore(store))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debates/nope/result",
		strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultRejectsInvalidPayload(t *testing.T) {
	store, err := resultstore.NewStore(t.TempDir())
	require.NoError(t, err)
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"),
		WithResultStore(store))
	handler := srv.Handler()
	id := createDebate(t, handler, validRequestBody(t, 1, 2))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debates/"+id+"/result",
		strings.NewReader(`{"scores": []}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"),
		WithAllowedOrigin("http://localhost:3000"))
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/debates", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider("mock", "hello"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

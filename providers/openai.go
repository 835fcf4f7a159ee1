package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/metrics/prometheus"
)

// defaultRequestTimeout bounds one streaming completion call end to end.
// An unbounded stall upstream would otherwise stall the whole debate.
const defaultRequestTimeout = 60 * time.Second

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat-completion APIs.
type OpenAIProvider struct {
	id       string
	model    string
	baseURL  string
	apiKey   string
	defaults ProviderDefaults
	client   *http.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// NewOpenAIProvider creates a new OpenAI provider. The API key is read from
// OPENAI_API_KEY, falling back to OPENAI_TOKEN.
func NewOpenAIProvider(id, model, baseURL string, defaults ProviderDefaults, opts ...OpenAIOption) *OpenAIProvider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_TOKEN")
	}

	p := &OpenAIProvider{
		id:       id,
		model:    model,
		baseURL:  baseURL,
		apiKey:   apiKey,
		defaults: defaults,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider ID
func (p *OpenAIProvider) ID() string {
	return p.id
}

// SupportsStreaming returns true for OpenAI
func (p *OpenAIProvider) SupportsStreaming() bool {
	return true
}

// Close closes the HTTP client and cleans up idle connections
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatStream streams a chat response from OpenAI.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	start := time.Now()

	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openAIMessage{
			Role:    "system",
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		messages = append(messages, openAIMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	// Apply provider defaults for zero values
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.defaults.Temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.defaults.MaxTokens
	}

	openAIReq := map[string]interface{}{
		"model":       p.model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"stream":      true,
	}
	if req.PresencePenalty != 0 {
		openAIReq["presence_penalty"] = req.PresencePenalty
	}
	if req.FrequencyPenalty != 0 {
		openAIReq["frequency_penalty"] = req.FrequencyPenalty
	}

	reqBody, err := json.Marshal(openAIReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	logger.APIRequest("OpenAI", "POST", p.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}, openAIReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		logger.APIResponse("OpenAI", resp.StatusCode, string(body), nil)
		prometheus.RecordProviderRequest(p.id, p.model, prometheus.StatusError, time.Since(start).Seconds())
		return nil, ParseAPIError(resp.StatusCode, body)
	}

	outChan := make(chan StreamChunk)

	go p.streamResponse(ctx, start, resp.Body, outChan)

	return outChan, nil
}

// streamResponse reads the SSE stream from OpenAI and sends one chunk per
// delta. Exactly one terminal chunk is sent before the channel closes.
func (p *OpenAIProvider) streamResponse(ctx context.Context, start time.Time, body io.ReadCloser, outChan chan<- StreamChunk) {
	defer close(outChan)
	defer body.Close()

	status := prometheus.StatusError
	defer func() {
		prometheus.RecordProviderRequest(p.id, p.model, status, time.Since(start).Seconds())
	}()

	scanner := NewSSEScanner(body)
	accumulated := ""
	totalTokens := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			outChan <- StreamChunk{
				Content:      accumulated,
				TokenCount:   totalTokens,
				Error:        ctx.Err(),
				FinishReason: ptr(FinishCancelled),
			}
			return
		default:
		}

		data := scanner.Data()
		if data == "[DONE]" {
			status = prometheus.StatusSuccess
			outChan <- StreamChunk{
				Content:      accumulated,
				TokenCount:   totalTokens,
				FinishReason: ptr(FinishStop),
			}
			return
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}

		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed chunks
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			accumulated += delta
			totalTokens++

			outChan <- StreamChunk{
				Content:    accumulated,
				Delta:      delta,
				TokenCount: totalTokens,
			}
		}

		if chunk.Choices[0].FinishReason != nil {
			status = prometheus.StatusSuccess
			outChan <- StreamChunk{
				Content:      accumulated,
				TokenCount:   totalTokens,
				FinishReason: chunk.Choices[0].FinishReason,
			}
			return
		}
	}

	// The upstream connection dropped or the body was malformed. Surface a
	// single terminal failure rather than letting the stream stop silently.
	err := scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	logger.LLMError("OpenAI", "assistant", err, "accumulated_tokens", totalTokens)
	outChan <- StreamChunk{
		Content:      accumulated,
		TokenCount:   totalTokens,
		Error:        err,
		FinishReason: ptr(FinishError),
	}
}

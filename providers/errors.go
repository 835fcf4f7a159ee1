package providers

import (
	"encoding/json"
	"fmt"
)

// ParseAPIError extracts a human-readable error from an OpenAI-style HTTP
// error response. These APIs return JSON like {"error":{"message":"..."}} on
// HTTP 4xx/5xx. Falls back to the raw body if parsing fails.
func ParseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("API error (HTTP %d): %s", statusCode, errResp.Error.Message)
	}
	return fmt.Errorf("API request failed with status %d: %s", statusCode, string(body))
}

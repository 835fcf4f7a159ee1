package types

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// debateRequestSchema is the embedded JSON Schema for session-creation
// payloads. It catches structural problems (wrong types, missing fields)
// with field-level detail; numeric bounds and the prompts/debaters
// invariant are enforced by DebateConfig.Validate.
const debateRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["prompt", "config"],
  "properties": {
    "prompt": {"type": "string", "minLength": 1},
    "config": {
      "type": "object",
      "required": ["numRounds", "numDebaters", "temperature", "maxTokensPerResponse", "systemPrompts", "debateStyle"],
      "properties": {
        "numRounds": {"type": "integer"},
        "numDebaters": {"type": "integer"},
        "temperature": {"type": "number"},
        "maxTokensPerResponse": {"type": "integer"},
        "debateStyle": {"type": "string"},
        "systemPrompts": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["role", "content"],
            "properties": {
              "role": {"type": "string"},
              "content": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var requestSchemaLoader = gojsonschema.NewStringLoader(debateRequestSchema)

// SchemaError is a single schema validation failure with field-level detail.
type SchemaError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// Error implements the error interface.
func (e SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaResult contains the outcome of JSON Schema validation.
type SchemaResult struct {
	Valid  bool          `json:"valid"`
	Errors []SchemaError `json:"errors,omitempty"`
}

// ValidateDebateRequest validates raw session-creation JSON against the
// embedded schema. A non-nil error means validation itself could not run.
func ValidateDebateRequest(jsonData []byte) (*SchemaResult, error) {
	result, err := gojsonschema.Validate(requestSchemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	sr := &SchemaResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		sr.Errors = append(sr.Errors, SchemaError{
			Field:       desc.Field(),
			Description: desc.Description(),
		})
	}
	return sr, nil
}

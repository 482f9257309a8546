// Package schema validates inbound JSON payloads against embedded JSON
// schemas before any field is trusted.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const uploadRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["filename", "data"],
  "properties": {
    "filename": {"type": "string", "minLength": 1},
    "data": {"type": "string", "minLength": 1}
  }
}`

var (
	uploadOnce     sync.Once
	uploadCompiled *jsonschema.Schema
	uploadErr      error
)

// ValidateUploadRequest validates the JSON upload body {filename, data}.
func ValidateUploadRequest(payload []byte) error {
	uploadOnce.Do(func() {
		uploadCompiled, uploadErr = compile("upload-request", uploadRequestSchema)
	})
	if uploadErr != nil {
		return fmt.Errorf("compile upload schema: %w", uploadErr)
	}
	return validate(uploadCompiled, payload)
}

// Validate checks a JSON payload against an arbitrary schema document.
func Validate(id, schemaText string, payload []byte) error {
	compiled, err := compile(id, schemaText)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return validate(compiled, payload)
}

func compile(id, schemaText string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	resourceID := "inmemory://" + id
	if err := compiler.AddResource(resourceID, strings.NewReader(schemaText)); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceID)
}

func validate(compiled *jsonschema.Schema, payload []byte) error {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

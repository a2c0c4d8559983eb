package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed model.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("model.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Validate checks a YAML definition against the model schema.
func Validate(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("model schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	// The validator expects the value shapes encoding/json produces.
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("model: %w", err)
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	return nil
}

// Package schemaguard validates record structure before it is committed,
// checking required-field presence the way a JSON Schema "required" clause
// does. It is the structural half of the integrity-and-schema guard; the
// digest half lives in package checksum.
package schemaguard

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// RecordKind names a record type with a registered schema.
type RecordKind string

const (
	Persona  RecordKind = "persona"
	Communal RecordKind = "communal"
)

var personaSchema = []byte(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["persona_id", "owner_id", "payload", "created_at", "updated_at", "schema_version"]
}`)

var communalSchema = []byte(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["memory_id", "payload", "created_at", "updated_at", "schema_version"]
}`)

// Registry compiles and holds the schemas for each known record kind.
type Registry struct {
	mu      sync.RWMutex
	schemas map[RecordKind]*gojsonschema.Schema
}

// NewRegistry builds a Registry preloaded with the persona and communal
// schemas required by the integrity guard.
func NewRegistry() (*Registry, error) {
	r := &Registry{schemas: make(map[RecordKind]*gojsonschema.Schema)}
	if err := r.register(Persona, personaSchema); err != nil {
		return nil, err
	}
	if err := r.register(Communal, communalSchema); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) register(kind RecordKind, definition []byte) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(definition))
	if err != nil {
		return fmt.Errorf("schemaguard: compile schema for %s: %w", kind, err)
	}
	r.mu.Lock()
	r.schemas[kind] = compiled
	r.mu.Unlock()
	return nil
}

// ValidateMap checks that record has every field required of kind.
// Missing fields produce a joined, human-readable description.
func (r *Registry) ValidateMap(kind RecordKind, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("schemaguard: marshal record: %w", err)
	}
	return r.Validate(kind, data)
}

// Validate checks JSON-encoded record content against kind's schema.
func (r *Registry) Validate(kind RecordKind, content []byte) error {
	r.mu.RLock()
	schema, ok := r.schemas[kind]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("schemaguard: no schema registered for %s", kind)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(content))
	if err != nil {
		return fmt.Errorf("schemaguard: validate: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msg := ""
	for i, e := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += e.Description()
	}
	return fmt.Errorf("schema validation failed for %s: %s", kind, msg)
}

package schemaguard

import "testing"

func TestValidateMapAcceptsCompletePersonaRecord(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	record := map[string]any{
		"persona_id":     "alden",
		"owner_id":       "user-1",
		"payload":        map[string]any{"trait": "curious"},
		"created_at":     "2026-01-01T00:00:00Z",
		"updated_at":     "2026-01-01T00:00:00Z",
		"schema_version": 1,
	}
	if err := r.ValidateMap(Persona, record); err != nil {
		t.Errorf("ValidateMap(complete persona) = %v, want nil", err)
	}
}

func TestValidateMapRejectsMissingRequiredField(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	record := map[string]any{
		"persona_id": "alden",
		"owner_id":   "user-1",
		// payload, created_at, updated_at, schema_version omitted
	}
	if err := r.ValidateMap(Persona, record); err == nil {
		t.Error("ValidateMap(incomplete persona) = nil, want an error")
	}
}

func TestValidateMapAcceptsCompleteCommunalRecord(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	record := map[string]any{
		"memory_id":      "shared-1",
		"payload":        map[string]any{"note": "team standup at 10am"},
		"created_at":     "2026-01-01T00:00:00Z",
		"updated_at":     "2026-01-01T00:00:00Z",
		"schema_version": 1,
	}
	if err := r.ValidateMap(Communal, record); err != nil {
		t.Errorf("ValidateMap(complete communal) = %v, want nil", err)
	}
}

func TestValidateUnknownKindFails(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.Validate(RecordKind("unknown"), []byte(`{}`)); err == nil {
		t.Error("Validate(unregistered kind) = nil, want an error")
	}
}

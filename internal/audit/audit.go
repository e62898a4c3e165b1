// Package audit implements the append-only audit trail: every
// state-changing or privilege-relevant action across the vault's
// components is recorded here, successes and failures alike.
package audit

import (
	"encoding/json"
	"sync"

	"github.com/amaydixit11/memvault/internal/vaultclock"
)

// Entry is a single, immutable audit record.
type Entry struct {
	Timestamp  string         `json:"timestamp"`
	Action     string         `json:"action"`
	UserID     string         `json:"user_id"`
	PersonaID  string         `json:"persona_id,omitempty"`
	MemoryType string         `json:"memory_type"`
	Key        string         `json:"key,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Result     string         `json:"result"`
}

// Log is an append-only, in-memory sequence of Entry values with a
// filterable export. It never mutates an entry once appended.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	clock   vaultclock.Clock
}

// New returns an empty Log using clock for entry timestamps.
func New(clock vaultclock.Clock) *Log {
	return &Log{clock: clock}
}

// Record appends a new entry. result should be "success" or
// "error: <message>" per the audit entry contract.
func (l *Log) Record(action, userID, personaID, memoryType, key string, details map[string]any, result string) {
	entry := Entry{
		Timestamp:  l.clock.Now(),
		Action:     action,
		UserID:     userID,
		PersonaID:  personaID,
		MemoryType: memoryType,
		Key:        key,
		Details:    details,
		Result:     result,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Success is shorthand for Record(..., "success").
func (l *Log) Success(action, userID, personaID, memoryType, key string, details map[string]any) {
	l.Record(action, userID, personaID, memoryType, key, details, "success")
}

// Failure is shorthand for Record(..., "error: "+err).
func (l *Log) Failure(action, userID, personaID, memoryType, key string, details map[string]any, err error) {
	l.Record(action, userID, personaID, memoryType, key, details, "error: "+err.Error())
}

// Filter matches entries by equality on the named fields; a zero-value
// field is treated as "don't filter on this".
type Filter struct {
	Action     string
	UserID     string
	PersonaID  string
	MemoryType string
	Result     string
}

func (f Filter) matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.PersonaID != "" && e.PersonaID != f.PersonaID {
		return false
	}
	if f.MemoryType != "" && e.MemoryType != f.MemoryType {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	return true
}

// Export returns entries matching filter (or all entries, for a zero-value
// filter) in original insertion order.
func (l *Log) Export(filter Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// ExportJSON returns the filtered entries as a JSON array.
func (l *Log) ExportJSON(filter Filter) ([]byte, error) {
	return json.Marshal(l.Export(filter))
}

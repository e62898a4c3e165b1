package audit

import (
	"errors"
	"testing"

	"github.com/amaydixit11/memvault/internal/vaultclock"
)

func TestRecordAndExportInsertionOrder(t *testing.T) {
	log := New(vaultclock.Fixed{At: "2026-01-01T00:00:00Z"})

	log.Success("create_or_update_persona", "user-1", "alden", "persona", "alden", nil)
	log.Record("get_persona_denied", "user-2", "alden", "persona", "alden", nil, "success")
	log.Failure("upsert_persona", "user-1", "alden", "persona", "alden", nil, errors.New("ownership mismatch"))

	entries := log.Export(Filter{})
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Action != "create_or_update_persona" || entries[2].Result != "error: ownership mismatch" {
		t.Error("entries not preserved in insertion order")
	}
}

func TestExportFilter(t *testing.T) {
	log := New(vaultclock.Fixed{At: "2026-01-01T00:00:00Z"})
	log.Success("get_persona", "user-1", "alden", "persona", "alden", nil)
	log.Record("get_persona_denied", "user-2", "alden", "persona", "alden", nil, "success")

	denied := log.Export(Filter{Action: "get_persona_denied"})
	if len(denied) != 1 || denied[0].UserID != "user-2" {
		t.Errorf("filtered export = %+v, want exactly the denied entry", denied)
	}
}

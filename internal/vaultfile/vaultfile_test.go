package vaultfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaulterrors"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
	"github.com/amaydixit11/memvault/pkg/crypto"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "vault.bin")
	return New(path, key, vaultclock.Fixed{At: "2026-01-01T00:00:00Z"}), path
}

func TestLoadEmptyReturnsFreshVaultFile(t *testing.T) {
	s, _ := newTestStore(t)

	vf, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(vf.Persona) != 0 || len(vf.Communal) != 0 {
		t.Error("expected an empty vault file on first load")
	}
}

func TestStoreThenLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	vf, _ := s.Load()
	vf.Persona["alden"] = vaultmodel.PersonaMemory{
		PersonaID: "alden", OwnerID: "user-1",
		Payload:       map[string]any{"traits": map[string]any{"openness": float64(50)}},
		CreatedAt:     "2026-01-01T00:00:00Z",
		UpdatedAt:     "2026-01-01T00:00:00Z",
		SchemaVersion: vaultmodel.SchemaVersion,
	}

	if err := s.Store(vf); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Persona["alden"].OwnerID != "user-1" {
		t.Errorf("owner_id = %q, want user-1", got.Persona["alden"].OwnerID)
	}
	if got.Metadata.Checksum == "" {
		t.Error("expected a stamped checksum after store")
	}
}

func TestTamperedCiphertextFailsIntegrity(t *testing.T) {
	s, path := newTestStore(t)

	vf, _ := s.Load()
	vf.Persona["alden"] = vaultmodel.PersonaMemory{PersonaID: "alden", OwnerID: "user-1",
		Payload: map[string]any{}, CreatedAt: "x", UpdatedAt: "x", SchemaVersion: 1}
	if err := s.Store(vf); err != nil {
		t.Fatalf("store: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw file: %v", err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write tampered file: %v", err)
	}

	_, err = s.Load()
	var integrityErr *vaulterrors.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestChecksumMismatchFailsIntegrity(t *testing.T) {
	s, _ := newTestStore(t)

	vf, _ := s.Load()
	vf.Persona["alden"] = vaultmodel.PersonaMemory{PersonaID: "alden", OwnerID: "user-1",
		Payload: map[string]any{}, CreatedAt: "x", UpdatedAt: "x", SchemaVersion: 1}
	if err := s.Store(vf); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Reload, corrupt the checksum field itself, and store the raw bytes
	// back through the underlying atomic file store so no recompute happens.
	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.Metadata.Checksum = "not-the-real-checksum"

	// Encrypt and write the corrupted struct directly, bypassing Store's
	// own checksum stamping, to simulate a file whose checksum disagrees
	// with its content.
	plaintext, _ := json.Marshal(loaded)
	ciphertext, err := crypto.Encrypt(s.key, plaintext, []byte(vaultAAD))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := s.files.Store(ciphertext); err != nil {
		t.Fatalf("store raw: %v", err)
	}

	_, err = s.Load()
	var integrityErr *vaulterrors.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for checksum mismatch, got %v", err)
	}
}

func TestMissingMetadataTreatedAsLegacy(t *testing.T) {
	s, _ := newTestStore(t)

	vf := vaultmodel.VaultFile{
		Persona:  map[string]vaultmodel.PersonaMemory{},
		Communal: map[string]vaultmodel.CommunalMemory{},
	}
	plaintext, _ := json.Marshal(vf)
	ciphertext, err := crypto.Encrypt(s.key, plaintext, []byte(vaultAAD))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := s.files.Store(ciphertext); err != nil {
		t.Fatalf("store raw: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load legacy file without metadata: %v", err)
	}
	if got.Metadata.SchemaVersion != vaultmodel.SchemaVersion {
		t.Error("expected legacy load to stamp the current schema version")
	}
}

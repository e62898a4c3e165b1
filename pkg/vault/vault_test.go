package vault

import (
	"path/filepath"
	"testing"

	"github.com/amaydixit11/memvault/internal/retrieval"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	dir := t.TempDir()
	v, err := Open(Config{
		VaultFilePath:  filepath.Join(dir, "vault.bin"),
		SliceIndexPath: ":memory:",
		KeyFilePath:    filepath.Join(dir, "master.key"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestOpenGeneratesAndReusesKey(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		VaultFilePath:  filepath.Join(dir, "vault.bin"),
		SliceIndexPath: ":memory:",
		KeyFilePath:    filepath.Join(dir, "master.key"),
	}

	v1, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open (first): %v", err)
	}
	if _, err := v1.UpsertPersona("alden", "user-1", map[string]any{"trait": "curious"}); err != nil {
		t.Fatalf("UpsertPersona: %v", err)
	}
	v1.Close()

	v2, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open (second, reusing key): %v", err)
	}
	defer v2.Close()

	got, ok, err := v2.GetPersona("alden", "user-1")
	if err != nil || !ok {
		t.Fatalf("GetPersona after reopen = (_, %v, %v), want found (key must be stable across opens)", ok, err)
	}
	if got.Payload["trait"] != "curious" {
		t.Errorf("payload after reopen = %v, want trait=curious", got.Payload)
	}
}

func TestVaultPersonaLifecycle(t *testing.T) {
	v := newTestVault(t)

	if _, err := v.UpsertPersona("alden", "user-1", map[string]any{"trait": "curious"}); err != nil {
		t.Fatalf("UpsertPersona: %v", err)
	}
	if _, ok, err := v.GetPersona("alden", "user-1"); err != nil || !ok {
		t.Fatalf("GetPersona: %v, %v", ok, err)
	}
	if err := v.DeletePersona("alden", "user-1"); err != nil {
		t.Fatalf("DeletePersona: %v", err)
	}
	if _, ok, err := v.GetPersona("alden", "user-1"); err != nil || ok {
		t.Fatalf("GetPersona after delete: %v, %v, want not found", ok, err)
	}
}

func TestVaultStoreRetrieveReason(t *testing.T) {
	v := newTestVault(t)

	if _, err := v.StoreSlice("user-1", "alden", "apple pie recipe with cinnamon and sugar", vaultmodel.Episodic, nil); err != nil {
		t.Fatalf("StoreSlice: %v", err)
	}

	result, err := v.Retrieve("apple cinnamon pie sugar", "user-1", "alden", retrieval.Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Slices) == 0 {
		t.Fatal("expected at least one retrieved slice")
	}

	chain, err := v.Reason("apple cinnamon pie sugar", "user-1", "alden", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if len(chain.ReasoningSteps) == 0 {
		t.Fatal("expected reasoning steps")
	}

	got, ok, err := v.GetChain(chain.ChainID)
	if err != nil || !ok {
		t.Fatalf("GetChain: %v, %v", ok, err)
	}
	if got.InitialQuery != chain.InitialQuery {
		t.Errorf("persisted chain query = %q, want %q", got.InitialQuery, chain.InitialQuery)
	}
}

func TestVaultOptimizeOnFreshStore(t *testing.T) {
	v := newTestVault(t)
	report, err := v.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if report.ChainsDeleted != 0 || report.SlicesDeleted != 0 {
		t.Errorf("Optimize on a fresh vault = %+v, want all zero", report)
	}
}

func TestVaultVerifyIntegrity(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.UpsertPersona("alden", "user-1", map[string]any{"trait": "curious"}); err != nil {
		t.Fatalf("UpsertPersona: %v", err)
	}
	if err := v.VerifyIntegrity(); err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
}

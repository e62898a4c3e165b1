package crypto

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrGenerateKey_FromEnv(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	const envVar = "MEMVAULT_TEST_KEY"
	os.Setenv(envVar, base64.StdEncoding.EncodeToString(key[:]))
	defer os.Unsetenv(envVar)

	got, err := LoadOrGenerateKey(KeyManagerConfig{EnvVar: envVar})
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	if got != key {
		t.Error("key loaded from env does not match original")
	}
}

func TestLoadOrGenerateKey_GeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "vault.key")

	first, err := LoadOrGenerateKey(KeyManagerConfig{KeyFilePath: keyPath})
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("key file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file permissions = %v, want 0600", info.Mode().Perm())
	}

	second, err := LoadOrGenerateKey(KeyManagerConfig{KeyFilePath: keyPath})
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if first != second {
		t.Error("key was regenerated instead of reused from the persisted file")
	}
}

func TestLoadOrGenerateKey_NoSourceConfigured(t *testing.T) {
	if _, err := LoadOrGenerateKey(KeyManagerConfig{}); err == nil {
		t.Error("expected an error when neither env var nor key file path is set")
	}
}

func TestLoadOrGenerateKey_PassphraseDerivesStableKey(t *testing.T) {
	dir := t.TempDir()
	saltPath := filepath.Join(dir, "vault.salt")

	first, err := LoadOrGenerateKey(KeyManagerConfig{KeyFilePath: saltPath, Passphrase: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	if _, err := os.Stat(saltPath); err != nil {
		t.Fatalf("salt file not created: %v", err)
	}

	second, err := LoadOrGenerateKey(KeyManagerConfig{KeyFilePath: saltPath, Passphrase: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if first != second {
		t.Error("same passphrase and persisted salt produced different keys across loads")
	}

	third, err := LoadOrGenerateKey(KeyManagerConfig{KeyFilePath: saltPath, Passphrase: "a different passphrase"})
	if err != nil {
		t.Fatalf("third load: %v", err)
	}
	if third == first {
		t.Error("different passphrases over the same salt produced the same key")
	}
}

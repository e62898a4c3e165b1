package crypto

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// KeyManagerConfig controls how LoadOrGenerateKey resolves the master key.
type KeyManagerConfig struct {
	// EnvVar, if non-empty, names an environment variable holding the key
	// as base64. Checked first.
	EnvVar string
	// KeyFilePath, if non-empty, is where a raw 32-byte key is read from or
	// written to when EnvVar is unset or absent, and Passphrase is empty.
	KeyFilePath string
	// Passphrase, if non-empty, switches key-file resolution to
	// passphrase-derived mode: KeyFilePath holds only a random salt, and
	// the master key is derived from Passphrase and that salt via Argon2id
	// rather than read or generated directly. This is the "key-file-at-rest
	// wrapping" mode — the file on disk never holds key material, only the
	// salt needed to re-derive it.
	Passphrase string
}

// LoadOrGenerateKey resolves the vault's master key in the order required
// by the key-management contract: a named environment variable, then a key
// file path, then a freshly generated key persisted to that path. Key
// persistence is write-once: once a key file (or salt file, in passphrase
// mode) exists it is never rewritten.
func LoadOrGenerateKey(cfg KeyManagerConfig) (Key, error) {
	var k Key

	if cfg.EnvVar != "" {
		if raw, ok := os.LookupEnv(cfg.EnvVar); ok && raw != "" {
			decoded, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return k, fmt.Errorf("crypto: decode key from %s: %w", cfg.EnvVar, err)
			}
			if len(decoded) != KeySize {
				return k, fmt.Errorf("crypto: key from %s has wrong length %d", cfg.EnvVar, len(decoded))
			}
			copy(k[:], decoded)
			return k, nil
		}
	}

	if cfg.KeyFilePath == "" {
		return k, fmt.Errorf("crypto: no key source available: neither %q nor a key file path is set", cfg.EnvVar)
	}

	if cfg.Passphrase != "" {
		return loadOrGenerateDerivedKey(cfg.KeyFilePath, cfg.Passphrase)
	}

	if raw, err := os.ReadFile(cfg.KeyFilePath); err == nil {
		if len(raw) != KeySize {
			return k, fmt.Errorf("crypto: key file %s has wrong length %d", cfg.KeyFilePath, len(raw))
		}
		copy(k[:], raw)
		return k, nil
	} else if !os.IsNotExist(err) {
		return k, fmt.Errorf("crypto: read key file: %w", err)
	}

	generated, err := GenerateKey()
	if err != nil {
		return k, fmt.Errorf("crypto: generate key: %w", err)
	}

	if err := persistKeyMaterial(cfg.KeyFilePath, generated[:]); err != nil {
		return k, err
	}

	return generated, nil
}

// loadOrGenerateDerivedKey reads the salt at saltFilePath (generating and
// persisting one if absent) and derives the master key from passphrase and
// that salt via Argon2id.
func loadOrGenerateDerivedKey(saltFilePath, passphrase string) (Key, error) {
	var k Key

	salt, err := os.ReadFile(saltFilePath)
	if err == nil {
		if len(salt) != SaltSize {
			return k, fmt.Errorf("crypto: salt file %s has wrong length %d", saltFilePath, len(salt))
		}
		return DeriveKey([]byte(passphrase), salt), nil
	}
	if !os.IsNotExist(err) {
		return k, fmt.Errorf("crypto: read salt file: %w", err)
	}

	generatedSalt, err := GenerateSalt()
	if err != nil {
		return k, fmt.Errorf("crypto: generate salt: %w", err)
	}
	if err := persistKeyMaterial(saltFilePath, generatedSalt); err != nil {
		return k, err
	}

	return DeriveKey([]byte(passphrase), generatedSalt), nil
}

func persistKeyMaterial(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("crypto: create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("crypto: persist key material: %w", err)
	}
	return nil
}

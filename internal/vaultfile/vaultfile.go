// Package vaultfile composes the crypto primitives, atomic file I/O, and
// checksum guard into the load/store contract for a single encrypted
// vault file: decrypt-then-verify on load, checksum-then-encrypt on
// store. This is the façade the design notes call for in place of
// subclassing a "base store" — each concern stays a separate component,
// wired together here rather than inherited.
package vaultfile

import (
	"encoding/json"
	"fmt"

	"github.com/amaydixit11/memvault/internal/atomicfile"
	"github.com/amaydixit11/memvault/internal/checksum"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaulterrors"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
	"github.com/amaydixit11/memvault/pkg/crypto"
)

// Store wraps a single vault file path with its encryption key and clock.
type Store struct {
	files *atomicfile.Store
	key   crypto.Key
	clock vaultclock.Clock
}

// New returns a Store for the vault file at path.
func New(path string, key crypto.Key, clock vaultclock.Clock) *Store {
	return &Store{files: atomicfile.New(path), key: key, clock: clock}
}

// vaultAAD binds ciphertext to the fact that it is a vault file, so a
// ciphertext produced for a different purpose can never be substituted in.
const vaultAAD = "memvault-vault-file"

// Load decrypts and verifies the vault file. A vault file that has never
// been stored returns a freshly initialized, empty VaultFile.
func (s *Store) Load() (vaultmodel.VaultFile, error) {
	raw, err := s.files.Load()
	if err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewVault("load", err)
	}
	if raw == nil {
		return vaultmodel.NewEmpty(s.clock.Now()), nil
	}

	plaintext, err := crypto.Decrypt(s.key, raw, []byte(vaultAAD))
	if err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewIntegrity("load", err.Error())
	}

	var vf vaultmodel.VaultFile
	if err := json.Unmarshal(plaintext, &vf); err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewIntegrity("load", "decrypted content is not valid vault JSON: "+err.Error())
	}

	// Per the open-question resolution: missing metadata is a legacy
	// format, not a failure — stamp it and let the next store persist it.
	if vf.Metadata.Checksum == "" {
		vf.Metadata.SchemaVersion = vaultmodel.SchemaVersion
		return vf, nil
	}

	want, err := checksum.SHA256Hex(vf.ChecksumPayload())
	if err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewVault("load", err)
	}
	if want != vf.Metadata.Checksum {
		return vaultmodel.VaultFile{}, vaulterrors.NewIntegrity("load", "checksum mismatch")
	}

	return vf, nil
}

// LoadFromBackup decrypts and parses the ".backup" sibling the way Load
// does the primary file, but does not verify its metadata checksum.
func (s *Store) LoadFromBackup() (vaultmodel.VaultFile, error) {
	raw, err := s.files.LoadBackup()
	if err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewVault("load_backup", err)
	}
	if raw == nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewNotFound("backup", "none present")
	}

	plaintext, err := crypto.Decrypt(s.key, raw, []byte(vaultAAD))
	if err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewIntegrity("load_backup", err.Error())
	}

	var vf vaultmodel.VaultFile
	if err := json.Unmarshal(plaintext, &vf); err != nil {
		return vaultmodel.VaultFile{}, vaulterrors.NewIntegrity("load_backup", "decrypted content is not valid vault JSON: "+err.Error())
	}
	return vf, nil
}

// Store stamps metadata.updated_at and metadata.checksum, encrypts the
// result, and durably commits it via atomicfile's backup/rename algorithm.
func (s *Store) Store(vf vaultmodel.VaultFile) error {
	sum, err := checksum.SHA256Hex(vf.ChecksumPayload())
	if err != nil {
		return vaulterrors.NewVault("store", err)
	}
	vf.Metadata.Checksum = sum
	vf.Metadata.UpdatedAt = s.clock.Now()
	if vf.Metadata.SchemaVersion == 0 {
		vf.Metadata.SchemaVersion = vaultmodel.SchemaVersion
	}

	plaintext, err := json.Marshal(vf)
	if err != nil {
		return vaulterrors.NewVault("store", err)
	}

	ciphertext, err := crypto.Encrypt(s.key, plaintext, []byte(vaultAAD))
	if err != nil {
		return vaulterrors.NewVault("store", fmt.Errorf("encrypt: %w", err))
	}

	if err := s.files.Store(ciphertext); err != nil {
		return vaulterrors.NewVault("store", err)
	}
	return nil
}

// VerifyIntegrity recomputes the checksum without mutating anything,
// reporting whether the currently committed file is internally consistent.
func (s *Store) VerifyIntegrity() error {
	_, err := s.Load()
	return err
}

// RestoreBackup recovers the prior committed state from the ".backup"
// sibling, per the IntegrityError recovery policy.
func (s *Store) RestoreBackup() error {
	return s.files.RestoreBackup()
}

// BackupExists reports whether a ".backup" sibling is present, which on
// startup indicates an interrupted write.
func (s *Store) BackupExists() bool {
	return s.files.BackupExists()
}

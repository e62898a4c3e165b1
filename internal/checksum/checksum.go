// Package checksum implements the canonical serialization and digest used
// to detect tampering or corruption of the vault's decrypted state.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Canonicalize produces a deterministic byte representation of v. Go's
// encoding/json already serializes string-keyed maps with their keys
// sorted lexicographically, at every nesting level, which is exactly the
// canonical form the checksum needs — no custom key-ordering is required.
func Canonicalize(v any) ([]byte, error) {
	return json.Marshal(v)
}

// SHA256Hex computes the canonical digest of v: SHA-256 over the UTF-8
// bytes of the canonical serialization, hex-encoded.
func SHA256Hex(v any) (string, error) {
	data, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

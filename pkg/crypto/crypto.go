package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSize // 96-bit nonce, per the vault file layout
	SaltSize  = 16
)

var (
	ErrInvalidKey = errors.New("invalid key size")
	// ErrDecrypt signals an AEAD tag mismatch or a truncated ciphertext.
	// Callers treat this as an integrity failure, not an ordinary error.
	ErrDecrypt = errors.New("decryption failed: authentication tag mismatch or truncated ciphertext")
)

// Key represents a 256-bit encryption key.
type Key [KeySize]byte

// GenerateKey creates a new random key.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// DeriveKey derives a key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase, salt []byte) Key {
	var k Key
	// time=3, memory=64MB, threads=2 (OWASP baseline parameters)
	dk := argon2.IDKey(passphrase, salt, 3, 64*1024, 2, KeySize)
	copy(k[:], dk)
	return k
}

// Encrypt encrypts plaintext with ChaCha20-Poly1305 under a fresh random
// nonce, returning nonce||ciphertext||tag. The nonce is 12 bytes, matching
// the bit-exact vault file layout (bytes 0..11 nonce, 12.. ciphertext).
func Encrypt(key Key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: create AEAD: %w", err)
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecrypt if the ciphertext was
// tampered with, truncated, or produced under a different key or AAD.
func Decrypt(key Key, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrDecrypt
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: create AEAD: %w", err)
	}

	nonce := ciphertext[:NonceSize]
	sealed := ciphertext[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plaintext, nil
}

// GenerateSalt creates a random salt for passphrase-based key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

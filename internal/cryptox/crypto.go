// Package cryptox holds the key derivation and authenticated encryption used
// by the scanner to protect cached credentials at rest.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
)

// NonceSize is the AES-GCM nonce length used by Seal.
const NonceSize = 12

var ErrInvalidKey = errors.New("invalid key length")

// DeriveMasterKey derives a 32-byte key from password and salt with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier returns a SHA-256 digest of the master key. The server stores
// only this value, never the key.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random nonce.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal. Tampered data or a wrong key yields an error.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// SealJSON marshals v to JSON and seals it.
func SealJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return Seal(plaintext, key)
}

// OpenJSON opens the ciphertext and unmarshals it into v.
func OpenJSON(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

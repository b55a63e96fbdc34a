// Package secure encrypts the device-local sensitive field (the AI API
// key) with the sync passphrase before it is folded into an outgoing
// sync payload.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrDecrypt is returned when a ciphertext cannot be opened with the
// given passphrase.
var ErrDecrypt = errors.New("secure: decryption failed")

const (
	saltSize = 16

	// argon2id parameters for passphrase key derivation.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keySize      = 32
)

// Sealer encrypts plaintext under a passphrase. The engine holds one so
// tests can count primitive invocations; production code uses Encrypt.
type Sealer func(password, plaintext string) (string, error)

// deriveKey stretches the passphrase with argon2id.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keySize)
}

// Encrypt seals plaintext under the passphrase with AES-GCM. The output
// is base64(salt || nonce || ciphertext). Fresh randomness is used per
// call, so two encryptions of identical input are never byte-identical.
func Encrypt(password, plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := append(salt, aead.Seal(nonce, nonce, []byte(plaintext), nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func Decrypt(password, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < saltSize {
		return "", ErrDecrypt
	}
	salt, rest := raw[:saltSize], raw[saltSize:]

	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}
	if len(rest) < aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, data := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// newAEAD derives an AEAD cipher from the passphrase and salt.
func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// FieldCache memoizes the last successful field encryption, keyed by
// the (password, plaintext) pair. It holds exactly one slot: the system
// has exactly one secret field. A second secret would need a real map.
type FieldCache struct {
	password   string
	plaintext  string
	ciphertext string
	valid      bool
}

// EncryptField produces the encrypted sensitive field for a payload.
//
// An empty password or plaintext yields an empty result with no error;
// the caller omits the field. A cache hit returns the previous
// ciphertext without re-invoking seal. The underlying scheme salts
// every call, so the cache only avoids redundant CPU and bandwidth, it
// is not needed for correctness. On failure the cache is left untouched
// and the caller must proceed with the field omitted.
func EncryptField(seal Sealer, password, plaintext string, cache *FieldCache) (string, error) {
	if password == "" || plaintext == "" {
		return "", nil
	}
	if cache != nil && cache.valid && cache.password == password && cache.plaintext == plaintext {
		return cache.ciphertext, nil
	}

	ct, err := seal(password, plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt sensitive field: %w", err)
	}
	if cache != nil {
		*cache = FieldCache{password: password, plaintext: plaintext, ciphertext: ct, valid: true}
	}
	return ct, nil
}

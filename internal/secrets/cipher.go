// Package secrets encrypts client secrets at rest in the registry. Secrets
// are stored in attribute values, so the ciphertext must be printable text.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrEmptyPassphrase  = errors.New("encryption passphrase must not be empty")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// keySalt is fixed so every run derives the same key from the passphrase.
// Ciphertexts written by one run must stay readable by the next.
var keySalt = []byte("oidcsync.client-secret.v1")

const keyIterations = 210_000

// Cipher encrypts and decrypts client secrets with AES-256-GCM. The key is
// derived from the configured passphrase with PBKDF2-SHA256.
type Cipher struct {
	key []byte
}

// NewCipher derives the AES key from the passphrase.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	key := pbkdf2.Key([]byte(passphrase), keySalt, keyIterations, 32, sha256.New)
	return &Cipher{key: key}, nil
}

// Encrypt encrypts plaintext and returns base64-encoded nonce + ciphertext.
// The empty string encrypts to the empty string; a client without a secret
// stays without one on the registry side.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. The empty string decrypts to the empty string.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return "", ErrDecryptionFailed
	}
	nonce := ciphertext[:gcm.NonceSize()]
	data := ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals and opens stored OAuth tokens. Ciphertexts are
// base64(nonce || sealed) so they can live in text columns.
type Cipher struct {
	key []byte
}

// NewCipher accepts a 32-byte key, either raw or hex-encoded
func NewCipher(key string) (*Cipher, error) {
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == chacha20poly1305.KeySize {
		return &Cipher{key: decoded}, nil
	}
	if len(key) == chacha20poly1305.KeySize {
		return &Cipher{key: []byte(key)}, nil
	}
	return nil, errors.New("token cipher key must be 32 bytes (raw or hex)")
}

// Encrypt seals a plaintext token
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed token
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %v", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.New("unable to decrypt token")
	}
	return string(plaintext), nil
}

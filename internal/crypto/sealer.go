// Package crypto seals Aptner passwords stored on behalf of users.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertext = errors.New("crypto: malformed ciphertext")

// Sealer encrypts with XChaCha20-Poly1305 and a random nonce per message.
// The associated data binds a ciphertext to its owner so it cannot be moved
// between rows.
type Sealer struct {
	aead cipher.AEAD
}

func New(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes (got %d)", chacha20poly1305.KeySize, len(key))
	}
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: a}, nil
}

func (s *Sealer) Seal(plaintext, ad string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	buf := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(ad))
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func (s *Sealer) Open(ciphertext, ad string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	ns := s.aead.NonceSize()
	if len(buf) < ns {
		return "", ErrCiphertext
	}
	pt, err := s.aead.Open(nil, buf[:ns], buf[ns:], []byte(ad))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(pt), nil
}

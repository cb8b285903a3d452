package database

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

var errCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// DeriveKey stretches the wallet secret into a 32-byte store encryption key.
func DeriveKey(secret []byte) []byte {
	sum := blake2b.Sum256(secret)
	return sum[:]
}

// encrypt seals plaintext with chacha20poly1305, prefixing the random nonce.
func encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("bad encryption key: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("bad decryption key: %w", err)
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

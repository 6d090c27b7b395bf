package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrMasterKeyRequired is returned when a KeyEncrypter is built without key
// material. Keys encrypted under a throwaway master key could never be read
// back after a restart.
var ErrMasterKeyRequired = errors.New("cryptox: master key is required")

// KeyEncrypter encrypts private key PEM for storage with AES-256-GCM. Output
// layout is [12-byte nonce][ciphertext][16-byte tag].
type KeyEncrypter struct {
	gcm cipher.AEAD
}

// NewKeyEncrypter derives a 256-bit key from masterKey with SHA-256.
func NewKeyEncrypter(masterKey []byte) (*KeyEncrypter, error) {
	if len(masterKey) == 0 {
		return nil, ErrMasterKeyRequired
	}

	key := sha256.Sum256(masterKey)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &KeyEncrypter{gcm: gcm}, nil
}

// EncryptPrivateKey encrypts pemData bound to kid, so a row copied under
// another key id fails to decrypt.
func (e *KeyEncrypter) EncryptPrivateKey(pemData []byte, kid string) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize(), e.gcm.NonceSize()+len(pemData)+e.gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return e.gcm.Seal(nonce, nonce, pemData, []byte(kid)), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func (e *KeyEncrypter) DecryptPrivateKey(data []byte, kid string) ([]byte, error) {
	if len(data) < e.gcm.NonceSize() {
		return nil, ErrSealedTooShort
	}

	nonce, ciphertext := data[:e.gcm.NonceSize()], data[e.gcm.NonceSize():]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, []byte(kid))
	if err != nil {
		return nil, fmt.Errorf("cryptox: decrypt private key: %w", err)
	}
	return plaintext, nil
}

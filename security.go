package httpcache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	nonceSize = 12
)

// EncryptedByteStore decorates a ByteStore with AES-256-GCM encryption at
// rest, keyed off a passphrase via scrypt. Used by WithEncryptedStore so a
// CacheStore's persisted entries (and bodies, if the same ByteStore backs
// both) are opaque to whatever substrate they land on.
type EncryptedByteStore struct {
	inner ByteStore
	gcm   cipher.AEAD
}

// NewEncryptedByteStore derives a key from passphrase and wraps inner.
func NewEncryptedByteStore(inner ByteStore, passphrase string) (*EncryptedByteStore, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("httpcache: encryption passphrase cannot be empty")
	}
	gcm, err := initEncryption(passphrase)
	if err != nil {
		return nil, err
	}
	return &EncryptedByteStore{inner: inner, gcm: gcm}, nil
}

func (s *EncryptedByteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	plain, err := decrypt(s.gcm, data)
	if err != nil {
		return nil, false, &StorageError{Op: "decrypt", Err: err}
	}
	return plain, true, nil
}

func (s *EncryptedByteStore) Set(ctx context.Context, key string, value []byte) error {
	cipherText, err := encrypt(s.gcm, value)
	if err != nil {
		return &StorageError{Op: "encrypt", Err: err}
	}
	return s.inner.Set(ctx, key, cipherText)
}

func (s *EncryptedByteStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// initEncryption derives an AES-256 key from passphrase via scrypt and
// builds the corresponding GCM AEAD.
func initEncryption(passphrase string) (cipher.AEAD, error) {
	salt := sha256.Sum256([]byte("httpcache-encrypted-store-salt-v1"))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// encrypt encrypts data using AES-256-GCM, prepending a random nonce.
func encrypt(gcm cipher.AEAD, data []byte) ([]byte, error) {
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decrypt reverses encrypt, expecting the nonce prepended to the ciphertext.
func decrypt(gcm cipher.AEAD, data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

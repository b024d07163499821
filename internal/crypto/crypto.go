package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/valnssh/vaporBooster/internal/domain"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

// ErrIntegrity is returned by Unseal when the authentication tag does not
// verify or any bundle field is malformed. Callers treat the credential as
// missing and require a fresh login.
var ErrIntegrity = errors.New("credential integrity check failed")

type Vault interface {
	Seal(plaintext string) (domain.SealedCredential, error)
	Unseal(bundle domain.SealedCredential) (string, error)
}

// NoopVault passes credentials through without encryption (dev/test mode).
type NoopVault struct{}

func (NoopVault) Seal(plaintext string) (domain.SealedCredential, error) {
	return domain.SealedCredential{Ciphertext: plaintext}, nil
}

func (NoopVault) Unseal(bundle domain.SealedCredential) (string, error) {
	return bundle.Ciphertext, nil
}

// AesGcmVault seals refresh credentials with AES-256-GCM before they touch
// durable storage. Every Seal draws a fresh random nonce; nonce reuse under
// the same key must never occur.
type AesGcmVault struct {
	gcm cipher.AEAD
}

// NewAesGcmVault derives the key from the operator secret by padding or
// truncating to 32 bytes. The secret is not assumed to be key-length-sized.
func NewAesGcmVault(secret string) (*AesGcmVault, error) {
	if secret == "" {
		return nil, fmt.Errorf("operator secret must not be empty")
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	vault := AesGcmVault{gcm: gcm}
	return &vault, nil
}

func deriveKey(secret string) []byte {
	key := make([]byte, keySize)
	for i := range key {
		key[i] = ' '
	}
	copy(key, secret)
	return key
}

func (v *AesGcmVault) Seal(plaintext string) (domain.SealedCredential, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.SealedCredential{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal returns ciphertext || tag; the bundle stores them separately.
	sealed := v.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - tagSize

	return domain.SealedCredential{
		IV:         hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(sealed[:split]),
		AuthTag:    hex.EncodeToString(sealed[split:]),
	}, nil
}

func (v *AesGcmVault) Unseal(bundle domain.SealedCredential) (string, error) {
	nonce, err := hex.DecodeString(bundle.IV)
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: malformed iv", ErrIntegrity)
	}

	ciphertext, err := hex.DecodeString(bundle.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrIntegrity)
	}

	tag, err := hex.DecodeString(bundle.AuthTag)
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: malformed auth tag", ErrIntegrity)
	}

	plaintext, err := v.gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	return string(plaintext), nil
}

package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valnssh/vaporBooster/internal/domain"
)

const testSecret = "correct horse battery staple"

func TestNewAesGcmVault_EmptySecret(t *testing.T) {
	vault, err := NewAesGcmVault("")
	assert.Error(t, err)
	assert.Nil(t, vault)
}

func TestNewAesGcmVault_ShortAndLongSecrets(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"shorter than key", "tiny"},
		{"exactly key sized", "0123456789abcdef0123456789abcdef"},
		{"longer than key", "0123456789abcdef0123456789abcdef-and-then-some-more"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault, err := NewAesGcmVault(tt.secret)
			require.NoError(t, err)
			assert.NotNil(t, vault)
		})
	}
}

func TestSealUnseal_Roundtrip(t *testing.T) {
	vault, err := NewAesGcmVault(testSecret)
	require.NoError(t, err)

	plaintext := "eyJhbGciOiJFZERTQSJ9.refresh-credential"

	bundle, err := vault.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.IV)
	assert.NotEmpty(t, bundle.Ciphertext)
	assert.NotEmpty(t, bundle.AuthTag)
	assert.NotContains(t, bundle.Ciphertext, plaintext)

	unsealed, err := vault.Unseal(bundle)
	require.NoError(t, err)
	assert.Equal(t, plaintext, unsealed)
}

func TestSeal_UniqueNonces(t *testing.T) {
	vault, err := NewAesGcmVault(testSecret)
	require.NoError(t, err)

	b1, err := vault.Seal("same-value")
	require.NoError(t, err)
	b2, err := vault.Seal("same-value")
	require.NoError(t, err)

	assert.NotEqual(t, b1.IV, b2.IV)
	assert.NotEqual(t, b1.Ciphertext, b2.Ciphertext)
}

func TestUnseal_CorruptedAuthTag(t *testing.T) {
	vault, err := NewAesGcmVault(testSecret)
	require.NoError(t, err)

	bundle, err := vault.Seal("secret")
	require.NoError(t, err)

	tag, err := hex.DecodeString(bundle.AuthTag)
	require.NoError(t, err)
	tag[0] ^= 0xFF
	bundle.AuthTag = hex.EncodeToString(tag)

	_, err = vault.Unseal(bundle)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestUnseal_MalformedFields(t *testing.T) {
	vault, err := NewAesGcmVault(testSecret)
	require.NoError(t, err)

	valid, err := vault.Seal("secret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		bundle domain.SealedCredential
	}{
		{"iv not hex", domain.SealedCredential{IV: "zz", Ciphertext: valid.Ciphertext, AuthTag: valid.AuthTag}},
		{"iv wrong length", domain.SealedCredential{IV: "abcd", Ciphertext: valid.Ciphertext, AuthTag: valid.AuthTag}},
		{"ciphertext not hex", domain.SealedCredential{IV: valid.IV, Ciphertext: "not-hex!", AuthTag: valid.AuthTag}},
		{"tag wrong length", domain.SealedCredential{IV: valid.IV, Ciphertext: valid.Ciphertext, AuthTag: "abcd"}},
		{"empty bundle", domain.SealedCredential{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vault.Unseal(tt.bundle)
			assert.ErrorIs(t, err, ErrIntegrity)
		})
	}
}

func TestUnseal_DifferentSecretFails(t *testing.T) {
	vaultA, err := NewAesGcmVault("secret-a")
	require.NoError(t, err)
	vaultB, err := NewAesGcmVault("secret-b")
	require.NoError(t, err)

	bundle, err := vaultA.Seal("secret")
	require.NoError(t, err)

	_, err = vaultB.Unseal(bundle)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestNoopVault_Passthrough(t *testing.T) {
	vault := NoopVault{}

	bundle, err := vault.Seal("plain")
	require.NoError(t, err)

	unsealed, err := vault.Unseal(bundle)
	require.NoError(t, err)
	assert.Equal(t, "plain", unsealed)
}

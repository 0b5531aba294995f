package service

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAESEncryptionService_NewInvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService("shortkey")
	assert.Error(t, err)

	_, err = NewAESEncryptionService("abcd")
	assert.Error(t, err, "valid hex but wrong length")
}

func TestAESEncryptionService_EncryptDecrypt(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	plaintext := `{"iban":"SA0380000000608010167519","bank":"Al Rajhi"}`
	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "SA0380000000608010167519")

	decrypted, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESEncryptionService_DifferentNonces(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	c1, err := svc.Encrypt("test_value")
	require.NoError(t, err)
	c2, err := svc.Encrypt("test_value")
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2)
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("secret")
	require.NoError(t, err)

	raw, err := hex.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = svc.Decrypt(hex.EncodeToString(raw))
	assert.Error(t, err)
}

func TestAESEncryptionService_WrongKey(t *testing.T) {
	svc1, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	svc2, err := NewAESEncryptionService("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")
	require.NoError(t, err)

	ciphertext, err := svc1.Encrypt("bank details")
	require.NoError(t, err)

	_, err = svc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESEncryptionService_FromSecret(t *testing.T) {
	a, err := NewAESEncryptionServiceFromSecret("jwt-secret")
	require.NoError(t, err)
	b, err := NewAESEncryptionServiceFromSecret("jwt-secret")
	require.NoError(t, err)

	ciphertext, err := a.Encrypt("hello")
	require.NoError(t, err)
	plain, err := b.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)

	_, err = NewAESEncryptionServiceFromSecret("")
	assert.Error(t, err)
}

func TestAESEncryptionService_InvalidCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex-at-all!!!")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcdef")
	assert.Error(t, err)
}

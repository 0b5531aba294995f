package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
var testArgon2Params = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService()

	password := "SecureP@ssw0rd!"
	hash, err := svc.Hash(password)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"), hash)

	match, err := svc.Verify(password, hash)
	require.NoError(t, err)
	assert.True(t, match, "correct password should verify")
}

func TestArgon2HashService_VerifyWrongPassword(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	hash, err := svc.Hash("correct-password")
	require.NoError(t, err)

	match, err := svc.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, match, "wrong password should not verify")
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	hash1, err := svc.Hash("same-password")
	require.NoError(t, err)
	hash2, err := svc.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestArgon2HashService_VerifiesAcrossParamChanges(t *testing.T) {
	old := NewArgon2HashServiceWithParams(testArgon2Params)
	hash, err := old.Hash("password123")
	require.NoError(t, err)

	current := NewArgon2HashServiceWithParams(Argon2Params{Time: 2, Memory: 2048, Threads: 2, KeyLen: 32, SaltLen: 16})
	match, err := current.Verify("password123", hash)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestArgon2HashService_MalformedHash(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"too few parts", "$argon2id$v=19$m=1024"},
		{"wrong algorithm", "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$garbage$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify("x", tt.hash)
			assert.Error(t, err)
		})
	}
}

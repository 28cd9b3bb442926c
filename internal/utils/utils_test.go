package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "test-secret"

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken(secret, 42, "MANAGER", 15)
	require.NoError(t, err)

	uid, role, err := ParseAccessToken(secret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "MANAGER", role)

	_, _, err = ParseAccessToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_OnlyHS256(t *testing.T) {
	exp := time.Now().Add(time.Minute).Unix()
	for _, m := range []jwt.SigningMethod{jwt.SigningMethodHS384, jwt.SigningMethodHS512} {
		raw, err := jwt.NewWithClaims(m, jwt.MapClaims{"sub": 42, "role": "MANAGER", "exp": exp}).SignedString([]byte(secret))
		require.NoError(t, err)
		_, _, err = ParseAccessToken(secret, raw)
		assert.ErrorIs(t, err, ErrInvalidToken, m.Alg())
	}
}

func TestAccessToken_Expired(t *testing.T) {
	tok, err := NewAccessToken(secret, 42, "CUSTOMER", -1)
	require.NoError(t, err)
	_, _, err = ParseAccessToken(secret, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetToken(t *testing.T) {
	hash, err := HashPassword("segreto1", 4)
	require.NoError(t, err)

	raw, err := NewResetToken(secret, 7, hash, 10*time.Minute)
	require.NoError(t, err)

	uid, fp, err := VerifyResetToken(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
	assert.Equal(t, PasswordFingerprint(hash), fp)

	// an access token is not a reset token
	access, err := NewAccessToken(secret, 7, "CUSTOMER", 5)
	require.NoError(t, err)
	_, _, err = VerifyResetToken(secret, access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewResetToken(secret, 7, hash, -time.Minute)
	require.NoError(t, err)
	_, _, err = VerifyResetToken(secret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSubjectID(t *testing.T) {
	tests := []struct {
		in   any
		want uint64
		ok   bool
	}{
		{float64(3), 3, true},
		{"12", 12, true},
		{uint64(5), 5, true},
		{"abc", 0, false},
		{float64(0), 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := SubjectID(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("segreto1", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "segreto1"))
	assert.False(t, VerifyPassword(hash, "sbagliata"))
	assert.Equal(t, HashRefreshRaw("x"), HashRefreshRaw("x"))
}

func TestHashPassword_CostOutOfRange(t *testing.T) {
	hash, err := HashPassword("segreto1", 0)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-passphrase", hash)

	assert.True(t, CheckPasswordHash("s3cret-passphrase", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("s3cret-passphrase", "not-a-hash"))
}

func TestGenerateAndValidateJWT(t *testing.T) {
	Init("test-secret", "TradeDesk", time.Hour)

	userID := uuid.New()
	token, err := GenerateJWT(userID, "ada@example.com", true)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "TradeDesk", claims.Issuer)
}

func TestValidateJWT_Tampered(t *testing.T) {
	Init("test-secret", "TradeDesk", time.Hour)

	token, err := GenerateJWT(uuid.New(), "ada@example.com", false)
	require.NoError(t, err)

	_, err = ValidateJWT(token + "x")
	assert.Error(t, err)

	_, err = ValidateJWT("not.a.token")
	assert.Error(t, err)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	Init("test-secret", "TradeDesk", time.Hour)
	token, err := GenerateJWT(uuid.New(), "ada@example.com", false)
	require.NoError(t, err)

	Init("other-secret", "TradeDesk", time.Hour)
	defer Init("test-secret", "TradeDesk", time.Hour)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateJWT_Expired(t *testing.T) {
	Init("test-secret", "TradeDesk", -time.Minute)
	defer Init("test-secret", "TradeDesk", time.Hour)

	token, err := GenerateJWT(uuid.New(), "ada@example.com", false)
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

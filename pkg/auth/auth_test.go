package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	session := UserSession{ID: "u-1", Name: "Rina", Email: "rina@example.com", CompanyID: "c-1", RoleID: "r-1"}

	token, claims, err := m.GenerateToken(session)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, session, parsed.User)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.Equal(t, "u-1", parsed.Subject)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager(testSecret, time.Hour).GenerateToken(UserSession{ID: "u-1"})
	require.NoError(t, err)

	_, err = NewTokenManager("another-secret-another-secret-xx", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m := NewTokenManager(testSecret, time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.GenerateToken(UserSession{ID: "u-1"})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{User: UserSession{ID: "u-1"}, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestDecodeToken(t *testing.T) {
	token, claims, err := NewTokenManager(testSecret, time.Hour).GenerateToken(UserSession{ID: "u-9"})
	require.NoError(t, err)

	decoded, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, decoded.ID)

	_, err = DecodeToken("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("S3cure!pass")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("S3cure!pass", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	assert.NoError(t, ValidatePasswordStrength("S3cure!pass"))
	assert.Error(t, ValidatePasswordStrength("Sh0rt!"))
	assert.Error(t, ValidatePasswordStrength("alllowercase1!"))
	assert.Error(t, ValidatePasswordStrength("ALLUPPERCASE1!"))
	assert.Error(t, ValidatePasswordStrength("NoDigitsHere!"))
	assert.Error(t, ValidatePasswordStrength("NoSpecial123"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("sales@nextperience.id"))
	assert.True(t, IsValidEmail("  a.b+c@x.co "))
	assert.False(t, IsValidEmail("nope"))
	assert.False(t, IsValidEmail("a@b"))
	assert.Equal(t, "ops@acme.com", NormalizeEmail("  OPS@Acme.com "))
}

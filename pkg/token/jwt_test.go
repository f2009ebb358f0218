package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("test-secret", 1)

	tokenStr, err := m.GenerateToken(42, "USER")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "USER", claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestAdminRoleClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 1)

	tokenStr, err := m.GenerateToken(1, "ADMIN")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tokenStr)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1 := NewJWTManager("secret-a", 1)
	m2 := NewJWTManager("secret-b", 1)

	tokenStr, err := m1.GenerateToken(42, "USER")
	require.NoError(t, err)

	_, err = m2.VerifyToken(tokenStr)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	// 有效期为 0 小时，签发即过期
	m := NewJWTManager("test-secret", 0)

	tokenStr, err := m.GenerateToken(42, "USER")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = m.VerifyToken(tokenStr)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", 1)
	_, err := m.VerifyToken("not-a-token")
	assert.Error(t, err)
}

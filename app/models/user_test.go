package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIssueAPIKey(t *testing.T) {
	u := &User{ID: 1}

	key, err := u.IssueAPIKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.True(t, strings.HasPrefix(key, "apg_"))
	assert.NotEmpty(t, u.APIKeyHash)
	assert.Equal(t, key[:8], u.APIKeyPrefix)
	assert.Equal(t, HashAPIKey(key), u.APIKeyHash)

	// The hash ignores surrounding whitespace so header parsing stays forgiving.
	assert.Equal(t, HashAPIKey(key), HashAPIKey("  "+key+" "))
}

func TestUserIsAdmin(t *testing.T) {
	assert.True(t, (&User{Role: ROLE_ADMIN}).IsAdmin())
	assert.False(t, (&User{Role: ROLE_USER}).IsAdmin())
}

func TestCreateUserHashesPassword(t *testing.T) {
	u, err := CreateUser("Javier", "javier@example.com", "secret123")
	require.NoError(t, err)

	assert.NotEqual(t, "secret123", u.Password)
	assert.True(t, CheckPasswordHash("secret123", u.Password))
	assert.False(t, CheckPasswordHash("wrong", u.Password))
	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_ACTIVE, u.Status)
}

package tokens

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute, time.Hour)
	userID := uuid.New()

	access, refresh, err := issuer.Pair(userID)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	accessClaims, err := issuer.Verify(access)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), accessClaims.UserID)
	assert.Empty(t, accessClaims.TokenType)

	refreshClaims, err := issuer.Verify(refresh)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), refreshClaims.UserID)
	assert.Equal(t, TypeRefresh, refreshClaims.TokenType)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Minute, time.Hour)
	other := NewIssuer("secret-b", time.Minute, time.Hour)

	access, _, err := issuer.Pair(uuid.New())
	require.NoError(t, err)

	_, err = other.Verify(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute, -time.Minute)

	access, _, err := issuer.Pair(uuid.New())
	require.NoError(t, err)

	_, err = issuer.Verify(access)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute, time.Hour)
	_, err := issuer.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHash(t *testing.T) {
	h1 := Hash("some-token")
	h2 := Hash("some-token")
	h3 := Hash("another-token")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.NotContains(t, h1, "some-token")
}

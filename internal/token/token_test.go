package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	m, err := NewManager(priv, pub, ttl, "erp-access-test")
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t, 15*time.Minute)

	signed, issuedAt, err := m.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := m.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "erp-access-test", claims.Issuer)
	assert.WithinDuration(t, issuedAt, claims.IssuedAt.Time, 2*time.Second)
}

func TestVerify_Expired(t *testing.T) {
	m := newTestManager(t, -1*time.Minute)

	signed, _, err := m.Issue(42)
	require.NoError(t, err)

	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Garbage(t *testing.T) {
	m := newTestManager(t, 15*time.Minute)

	_, err := m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongKey(t *testing.T) {
	m1 := newTestManager(t, 15*time.Minute)
	m2 := newTestManager(t, 15*time.Minute)

	signed, _, err := m1.Issue(42)
	require.NoError(t, err)

	_, err = m2.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyOnlyManager(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	issuer, err := NewManager(priv, pub, 15*time.Minute, "erp-access-test")
	require.NoError(t, err)
	verifier, err := NewManager("", pub, 15*time.Minute, "erp-access-test")
	require.NoError(t, err)

	signed, _, err := issuer.Issue(7)
	require.NoError(t, err)

	claims, err := verifier.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)

	_, _, err = verifier.Issue(7)
	assert.Error(t, err)
}

package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

const testSecret = "test-secret-key-at-least-32-bytes-long"

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	tok, expiresAt, err := m.Issue(42)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestManager_DefaultTTL(t *testing.T) {
	m := NewManager(testSecret, 0)
	issuedAt := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	_, expiresAt, err := m.Issue(1)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(7*24*time.Hour), expiresAt)
}

func TestManager_Verify_Failures(t *testing.T) {
	m := NewManager(testSecret, time.Hour)
	valid, _, err := m.Issue(7)
	require.NoError(t, err)

	other := NewManager("a-completely-different-secret-value", time.Hour)
	foreign, _, err := other.Issue(7)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "7",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: foreign},
		{name: "other algorithm", token: hs512},
		{name: "missing expiry", token: noExp},
		{name: "non-numeric subject", token: badSubject},
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
		{name: "tampered", token: valid + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, driven.ErrInvalidToken)
		})
	}
}

func TestManager_Verify_Expired(t *testing.T) {
	m := NewManager(testSecret, time.Minute)
	issued := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	tok, _, err := m.Issue(3)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(30 * time.Second) }
	_, err = m.Verify(tok)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, driven.ErrInvalidToken)
}

func TestManager_Verify_RejectsNoneAlgorithm(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, driven.ErrInvalidToken)
}

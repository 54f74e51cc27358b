package mfa

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 4226 appendix D vectors for the shared secret "12345678901234567890".
func TestHOTPReferenceVectors(t *testing.T) {
	secret := []byte("12345678901234567890")
	expected := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for counter, want := range expected {
		assert.Equal(t, want, hotpCode(secret, int64(counter)), "counter %d", counter)
	}
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	raw, err := b32.DecodeString(strings.ToUpper(secret))
	require.NoError(t, err)
	return hotpCode(raw, at.Unix()/totpPeriod)
}

func TestVerifyCodeWindow(t *testing.T) {
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, VerifyCode(secret, codeAt(t, secret, now), now))

	// One step of drift in either direction is accepted.
	assert.True(t, VerifyCode(secret, codeAt(t, secret, now.Add(-30*time.Second)), now))
	assert.True(t, VerifyCode(secret, codeAt(t, secret, now.Add(30*time.Second)), now))

	// Two steps out is rejected.
	assert.False(t, VerifyCode(secret, codeAt(t, secret, now.Add(90*time.Second)), now))
	assert.False(t, VerifyCode(secret, codeAt(t, secret, now.Add(-90*time.Second)), now))
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	now := time.Unix(59, 0)

	assert.False(t, VerifyCode(secret, "", now))
	assert.False(t, VerifyCode(secret, "12345", now))
	assert.False(t, VerifyCode(secret, "1234567", now))
	assert.False(t, VerifyCode(secret, "12345a", now))
	assert.False(t, VerifyCode("not-base32!", "123456", now))
}

func TestVerifyCodeTrimsWhitespace(t *testing.T) {
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, VerifyCode(secret, " "+codeAt(t, secret, now)+" ", now))
}

func TestNewSecret(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	raw, err := b32.DecodeString(secret)
	require.NoError(t, err)
	assert.Len(t, raw, secretBytes)

	other, err := NewSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestProvisionURI(t *testing.T) {
	uri := ProvisionURI("identity", "jo@acme.com", "SECRET123")

	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "secret=SECRET123")
	assert.Contains(t, uri, "issuer=identity")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "period=30")
}

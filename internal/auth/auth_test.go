package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "Correct horse"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword("secret")
	require.NoError(t, err)
	b, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_RejectsBadInput(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = HashPassword(strings.Repeat("x", MaxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{"", "plaintext", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=19$bogus$c2FsdA$aGFzaA"} {
		assert.False(t, VerifyPassword(h, "secret"), h)
	}
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	info, err := os.Stat(filepath.Join(dir, KeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadOrGenerateKey_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFileName), []byte("abc"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func newTokenService(t *testing.T, clock clockwork.Clock) *TokenService {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	svc, err := NewTokenService(key, time.Hour, clock)
	require.NoError(t, err)
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	svc := newTokenService(t, clock)

	token, err := svc.GenerateAccessToken(&domain.User{ID: "user-1", Username: "анна"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "анна", claims.Username)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.Expiration.Equal(clock.Now().Add(time.Hour)))
}

func TestTokenExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	svc := newTokenService(t, clock)

	token, err := svc.GenerateAccessToken(&domain.User{ID: "user-1", Username: "reader"})
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestTokenFromOtherKeyRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newTokenService(t, clock)

	other, err := NewTokenService(make([]byte, KeySize), time.Hour, clock)
	require.NoError(t, err)
	token, err := other.GenerateAccessToken(&domain.User{ID: "user-1", Username: "reader"})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestNewTokenService_Validates(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour, clockwork.NewRealClock())
	assert.Error(t, err)
	_, err = NewTokenService(make([]byte, KeySize), 0, clockwork.NewRealClock())
	assert.Error(t, err)
}

package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/store/kv"
)

func newAuthService(t *testing.T) (*AuthService, *clockwork.FakeClock) {
	t.Helper()
	log := logger.Discard().Logger
	clock := clockwork.NewFakeClock()

	st, err := kv.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{7}, auth.KeySize), time.Hour, clock)
	require.NoError(t, err)

	return NewAuthService(st, tokens, clock, log), clock
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, Credentials{Username: "  reader  ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "reader", reg.Username)
	assert.NotEmpty(t, reg.Token)
	assert.NotEqual(t, "secret", reg.User.PasswordHash)

	login, err := svc.Login(ctx, Credentials{Username: "reader", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	user, err := svc.VerifyAccessToken(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, "reader", user.Username)
}

func TestRegister_Rejects(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, Credentials{Username: "reader", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, Credentials{Username: "reader", Password: "other"})
	assertCode(t, err, domainerrors.CodeAlreadyExists)

	_, err = svc.Register(ctx, Credentials{Username: " ", Password: "x"})
	assertCode(t, err, domainerrors.CodeValidation)

	_, err = svc.Register(ctx, Credentials{Username: "new", Password: ""})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestLogin_SameErrorForUnknownUserAndWrongPassword(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, Credentials{Username: "reader", Password: "secret"})
	require.NoError(t, err)

	_, errWrong := svc.Login(ctx, Credentials{Username: "reader", Password: "nope"})
	_, errUnknown := svc.Login(ctx, Credentials{Username: "ghost", Password: "secret"})

	assertCode(t, errWrong, domainerrors.CodeInvalidCredentials)
	assertCode(t, errUnknown, domainerrors.CodeInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	svc, clock := newAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, Credentials{Username: "reader", Password: "secret"})
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = svc.VerifyAccessToken(ctx, reg.Token)
	assertCode(t, err, domainerrors.CodeUnauthorized)

	_, err = svc.VerifyAccessToken(ctx, "v4.local.garbage")
	assertCode(t, err, domainerrors.CodeUnauthorized)
}

func TestCurrentUser_Missing(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.CurrentUser(context.Background(), "user-gone")

	assertCode(t, err, domainerrors.CodeUnauthorized)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookmeal-admin/internal/domain"
	"lookmeal-admin/internal/store"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestAuth(t *testing.T) (*AuthService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc, err := NewAuthService(context.Background(), mem, AuthConfig{JWTSecret: "test-secret"}, testLogger())
	require.NoError(t, err)
	return svc, mem
}

func storedAccounts(t *testing.T, mem *store.Memory) []domain.RegisteredAccount {
	t.Helper()
	data, ok, err := mem.Get(context.Background(), store.KeyRegisteredUsers)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	var accounts []domain.RegisteredAccount
	require.NoError(t, json.Unmarshal([]byte(data), &accounts))
	return accounts
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	res := svc.Register(ctx, "x@y.com", "p")
	require.True(t, res.Success, res.Message)

	res = svc.Login(ctx, "x@y.com", "p")
	require.True(t, res.Success, res.Message)

	session := svc.CurrentSession()
	require.NotNil(t, session)
	assert.Equal(t, "x@y.com", session.Email)
	assert.Equal(t, "x", session.Name)
	assert.Equal(t, "管理者", session.Role)
	assert.True(t, svc.IsAuthenticated())
}

func TestEmailCaseInsensitive(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	res := svc.Register(ctx, "A@B.com", "secret")
	require.True(t, res.Success)

	assert.True(t, svc.IsRegistered(ctx, "a@b.com"))
	assert.True(t, svc.IsRegistered(ctx, "A@B.COM"))

	res = svc.Login(ctx, "a@b.com", "secret")
	assert.True(t, res.Success, res.Message)
}

func TestRegisterDuplicateFails(t *testing.T) {
	svc, mem := newTestAuth(t)
	ctx := context.Background()

	require.True(t, svc.Register(ctx, "x@y.com", "p1").Success)

	res := svc.Register(ctx, "X@Y.com", "p2")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrAlreadyRegistered)
	assert.Len(t, storedAccounts(t, mem), 1)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestAuth(t)

	res := svc.Login(context.Background(), "nobody@y.com", "p")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrNotRegistered)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	require.True(t, svc.Register(ctx, "x@y.com", "right").Success)

	res := svc.Login(ctx, "x@y.com", "wrong")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrInvalidPassword)
	assert.NotErrorIs(t, res.Err, ErrNotRegistered)
	assert.False(t, svc.IsAuthenticated())
}

func TestResetPasswordCreatesAccount(t *testing.T) {
	svc, mem := newTestAuth(t)
	ctx := context.Background()

	res := svc.ResetPassword(ctx, "new@y.com", "first")
	require.True(t, res.Success, res.Message)
	assert.True(t, svc.IsRegistered(ctx, "new@y.com"))

	// the reset path must keep accepting the same email
	res = svc.ResetPassword(ctx, "new@y.com", "second")
	require.True(t, res.Success, res.Message)
	assert.NotErrorIs(t, res.Err, ErrAlreadyRegistered)

	accounts := storedAccounts(t, mem)
	require.Len(t, accounts, 1)
	assert.NotNil(t, accounts[0].PasswordResetAt)

	res = svc.Login(ctx, "new@y.com", "second")
	assert.True(t, res.Success, res.Message)
}

func TestResetPasswordSamePassword(t *testing.T) {
	svc, mem := newTestAuth(t)
	ctx := context.Background()

	require.True(t, svc.Register(ctx, "x@y.com", "keep").Success)

	res := svc.ResetPassword(ctx, "x@y.com", "keep")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrSamePassword)

	accounts := storedAccounts(t, mem)
	require.Len(t, accounts, 1)
	assert.Nil(t, accounts[0].PasswordResetAt)
}

func TestLogoutClearsSession(t *testing.T) {
	svc, mem := newTestAuth(t)
	ctx := context.Background()

	require.True(t, svc.Register(ctx, "x@y.com", "p").Success)
	require.True(t, svc.Login(ctx, "x@y.com", "p").Success)
	require.True(t, svc.IsAuthenticated())

	require.NoError(t, svc.Logout(ctx))

	assert.False(t, svc.IsAuthenticated())
	assert.Nil(t, svc.CurrentSession())

	_, ok, err := mem.Get(ctx, store.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = mem.Get(ctx, store.KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJustLoggedOutIsOneShot(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	assert.False(t, svc.ConsumeJustLoggedOut(ctx))

	require.True(t, svc.Register(ctx, "x@y.com", "p").Success)
	require.True(t, svc.Login(ctx, "x@y.com", "p").Success)
	require.NoError(t, svc.Logout(ctx))

	assert.True(t, svc.ConsumeJustLoggedOut(ctx))
	assert.False(t, svc.ConsumeJustLoggedOut(ctx))
}

func TestSessionRestoredFromStore(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	first, err := NewAuthService(ctx, mem, AuthConfig{JWTSecret: "test-secret"}, testLogger())
	require.NoError(t, err)
	require.True(t, first.Register(ctx, "x@y.com", "p").Success)
	require.True(t, first.Login(ctx, "x@y.com", "p").Success)

	second, err := NewAuthService(ctx, mem, AuthConfig{JWTSecret: "test-secret"}, testLogger())
	require.NoError(t, err)
	assert.True(t, second.IsAuthenticated())
	session := second.CurrentSession()
	require.NotNil(t, session)
	assert.Equal(t, "x@y.com", session.Email)
}

func TestCorruptSessionCleared(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.KeyUserData, "{not json"))
	require.NoError(t, mem.Set(ctx, store.KeyAuthToken, "token"))

	svc, err := NewAuthService(ctx, mem, AuthConfig{JWTSecret: "test-secret"}, testLogger())
	require.NoError(t, err)

	assert.False(t, svc.IsAuthenticated())
	_, ok, err := mem.Get(ctx, store.KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = mem.Get(ctx, store.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptAccountsTreatedAsEmpty(t *testing.T) {
	svc, mem := newTestAuth(t)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.KeyRegisteredUsers, "][ garbage"))

	assert.False(t, svc.IsRegistered(ctx, "x@y.com"))
	assert.False(t, svc.HasRegisteredAccounts(ctx))

	// the corrupt entry is cleared on first read
	_, ok, err := mem.Get(ctx, store.KeyRegisteredUsers)
	require.NoError(t, err)
	assert.False(t, ok)

	// and the store is usable again
	assert.True(t, svc.Register(ctx, "x@y.com", "p").Success)
}

type failingStore struct{ err error }

func (f *failingStore) Init(ctx context.Context) error { return nil }
func (f *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, f.err
}
func (f *failingStore) Set(ctx context.Context, key, value string) error { return f.err }
func (f *failingStore) Delete(ctx context.Context, key string) error     { return f.err }

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, err := NewAuthService(ctx, &failingStore{err: errors.New("disk gone")}, AuthConfig{JWTSecret: "test-secret"}, testLogger())
	require.NoError(t, err)

	res := svc.Register(ctx, "x@y.com", "p")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrStorageUnavailable)

	res = svc.Login(ctx, "x@y.com", "p")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrStorageUnavailable)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	require.True(t, svc.Register(ctx, "x@y.com", "p").Success)
	require.True(t, svc.Login(ctx, "x@y.com", "p").Success)

	token, ok := svc.AuthToken(ctx)
	require.True(t, ok)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "x@y.com", claims["email"])

	_, err = svc.ValidateToken(token + "tampered")
	assert.Error(t, err)
}

func TestHasRegisteredAccounts(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	assert.False(t, svc.HasRegisteredAccounts(ctx))
	require.True(t, svc.Register(ctx, "x@y.com", "p").Success)
	assert.True(t, svc.HasRegisteredAccounts(ctx))
}

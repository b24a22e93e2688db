package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/z-chat/internal/model/user"
)

func newTestService() *Service {
	svc := NewService("test-secret", time.Hour)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acc, err := svc.Register(ctx, user.RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Email)
	assert.NotEmpty(t, acc.ID)

	for _, login := range []string{"alice", "ALICE", "alice@example.com"} {
		got, token, err := svc.Authenticate(ctx, login, "secret1")
		require.NoError(t, err, login)
		assert.Equal(t, acc.ID, got.ID)
		assert.NotEmpty(t, token)
	}

	_, _, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Authenticate(ctx, "bob", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, user.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, user.RegisterRequest{Username: "Alice", Email: "other@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(ctx, user.RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, user.RegisterRequest{Username: "al", Email: "nope", Password: "123"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.Equal(t, "Username must be at least 3 characters", verr.Error())
}

func TestVerifyAndRevoke(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, user.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, token, err := svc.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	acc, claims, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.Equal(t, acc.ID, claims.Subject)

	svc.Revoke(ctx, claims)
	_, _, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	_, err := svc.Register(ctx, user.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, token, err := svc.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, _, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	ctx := context.Background()
	issuer := newTestService()
	other := newTestService()
	other.secret = []byte("other-secret")

	_, err := issuer.Register(ctx, user.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, token, err := issuer.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, _, err = other.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

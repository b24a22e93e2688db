package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/z-chat/internal/errs"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	err := fmt.Errorf("login: %w", errs.Auth("missing token"))

	assert.True(t, errs.Is(err, errs.KindAuth))
	assert.False(t, errs.Is(err, errs.KindNetwork))
	assert.Equal(t, "login: missing token", err.Error())
}

func TestNetworkUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := errs.Network(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, errs.StatusOf(errs.AuthStatus(http.StatusUnauthorized, "nope")))
	assert.Equal(t, 0, errs.StatusOf(errors.New("plain")))
}

package auth

import (
	"testing"
	"time"

	"github.com/mahaj/relay/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	v := NewVerifier([]byte("secret"))

	token, err := v.Sign("alice", time.Hour)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier([]byte("secret-a")).Sign("alice", time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier([]byte("secret-b")).Verify(token)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier([]byte("secret"))
	token, err := v.Sign("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier([]byte("secret"))
	_, err := v.Verify("not-a-token")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

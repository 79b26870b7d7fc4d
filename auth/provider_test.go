package auth

import (
	"chat-relay/errors"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalProvider_ValidateToken(t *testing.T) {
	req := require.New(t)
	provider := NewLocalProvider(NewSigner("test-secret", time.Hour))

	token, err := provider.Issue("user-123", []string{"user"})
	req.NoError(err)

	session, err := provider.ValidateToken(context.Background(), token)
	req.NoError(err)
	req.Equal("user-123", session.Identity)
	req.Equal(token, session.Credential)
	req.WithinDuration(time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)
}

func TestLocalProvider_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	provider := NewLocalProvider(NewSigner("test-secret", time.Hour))
	token, err := NewSigner("another-secret", time.Hour).GenerateToken("user-123", nil)
	req.NoError(err)

	_, err = provider.ValidateToken(context.Background(), token)
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestLocalProvider_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	signer := NewSigner("test-secret", time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := signer.GenerateToken("user-123", nil)
	req.NoError(err)

	provider := NewLocalProvider(NewSigner("test-secret", time.Minute))
	_, err = provider.ValidateToken(context.Background(), token)
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestLocalProvider_Revoke(t *testing.T) {
	req := require.New(t)
	provider := NewLocalProvider(NewSigner("test-secret", time.Hour))
	token, err := provider.Issue("user-123", nil)
	req.NoError(err)
	other, err := provider.Issue("user-123", nil)
	req.NoError(err)

	// When the first token is revoked
	req.NoError(provider.Revoke(token))

	// Then only that one is rejected
	_, err = provider.ValidateToken(context.Background(), token)
	req.ErrorIs(err, errors.ErrUnauthenticated)
	_, err = provider.ValidateToken(context.Background(), other)
	req.NoError(err)

	// And garbage cannot be revoked
	req.ErrorIs(provider.Revoke("garbage"), errors.ErrUnauthenticated)
}

package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestValidator(t *testing.T, provider *mocks.MockAuthProvider) *CredentialValidator {
	t.Helper()
	validator, err := NewCredentialValidator(logs.GetLoggerFromLevel(slog.LevelDebug), provider, 1000, time.Hour)
	require.NoError(t, err)
	t.Cleanup(validator.Close)
	return validator
}

func validSession(identity, token string, ttl time.Duration) domain.Session {
	now := time.Now()
	return domain.Session{Identity: identity, IssuedAt: now, ExpiresAt: now.Add(ttl), Credential: token}
}

func TestCredentialValidator_RejectsMalformedCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	validator := newTestValidator(t, provider)

	// Provider must never be called
	provider.EXPECT().ValidateToken(gomock.Any(), gomock.Any()).Times(0)

	for _, credential := range []string{"", "two words", strings.Repeat("x", maxCredentialLength+1)} {
		_, err := validator.Resolve(context.Background(), credential)
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	}
}

func TestCredentialValidator_CachesSuccessfulResolution(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	validator := newTestValidator(t, provider)

	provider.EXPECT().
		ValidateToken(gomock.Any(), "token-a").
		Return(validSession("alice", "token-a", time.Hour), nil).
		Times(1)

	session, err := validator.Resolve(context.Background(), "token-a")
	req.NoError(err)
	req.Equal("alice", session.Identity)
	validator.Wait()

	// Second resolution is served by the cache
	session, err = validator.Resolve(context.Background(), "token-a")
	req.NoError(err)
	req.Equal("alice", session.Identity)
}

func TestCredentialValidator_CacheNeverOutlivesToken(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	validator := newTestValidator(t, provider)

	gomock.InOrder(
		provider.EXPECT().ValidateToken(gomock.Any(), "short").
			Return(validSession("alice", "short", 50*time.Millisecond), nil),
		provider.EXPECT().ValidateToken(gomock.Any(), "short").
			Return(domain.Session{}, fmt.Errorf("%w: expired", errors.ErrUnauthenticated)),
	)

	_, err := validator.Resolve(context.Background(), "short")
	req.NoError(err)
	validator.Wait()

	time.Sleep(100 * time.Millisecond)

	_, err = validator.Resolve(context.Background(), "short")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestCredentialValidator_RevalidateInvalidatesCache(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	validator := newTestValidator(t, provider)

	gomock.InOrder(
		provider.EXPECT().ValidateToken(gomock.Any(), "token-a").
			Return(validSession("alice", "token-a", time.Hour), nil),
		provider.EXPECT().ValidateToken(gomock.Any(), "token-a").
			Return(domain.Session{}, errors.ErrUnauthenticated).
			Times(2),
	)

	_, err := validator.Resolve(context.Background(), "token-a")
	req.NoError(err)
	validator.Wait()

	// Given the provider revoked the token
	_, err = validator.Revalidate(context.Background(), "token-a")
	req.ErrorIs(err, errors.ErrUnauthenticated)

	// Then the cached entry is gone and the provider is asked again
	_, err = validator.Resolve(context.Background(), "token-a")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestCredentialValidator_ProviderOutage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	validator := newTestValidator(t, provider)

	provider.EXPECT().
		ValidateToken(gomock.Any(), "token-a").
		Return(domain.Session{}, fmt.Errorf("dial tcp: connection refused"))

	_, err := validator.Resolve(context.Background(), "token-a")
	req.ErrorIs(err, errors.ErrAuthProviderUnavailable)
	req.NotErrorIs(err, errors.ErrUnauthenticated)
}

func TestCredentialValidator_RejectsExpiredSession(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockAuthProvider(ctrl)
	validator := newTestValidator(t, provider)

	provider.EXPECT().
		ValidateToken(gomock.Any(), "old").
		Return(validSession("alice", "old", -time.Minute), nil)

	_, err := validator.Resolve(context.Background(), "old")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

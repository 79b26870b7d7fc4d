package auth

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/dgraph-io/ristretto/v2"
)

const maxCredentialLength = 4096

// CredentialValidator resolves credentials to sessions through an AuthProvider.
// Successful resolutions are cached by raw token for at most the token's
// remaining lifetime, bounded by cacheTTL.
type CredentialValidator struct {
	provider contract.AuthProvider
	cache    *ristretto.Cache[string, domain.Session]
	cacheTTL time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewCredentialValidator(log *slog.Logger, provider contract.AuthProvider,
	cacheSize int64, cacheTTL time.Duration) (*CredentialValidator, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, domain.Session]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("credential cache: %w", err)
	}
	return &CredentialValidator{
		provider: provider,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}, nil
}

// Resolve returns the session behind a credential, from cache when possible.
func (v *CredentialValidator) Resolve(ctx context.Context, credential string) (domain.Session, error) {
	if err := checkFormat(credential); err != nil {
		return domain.Session{}, err
	}
	if session, ok := v.cache.Get(credential); ok {
		if !session.Expired(v.now()) {
			return session, nil
		}
		v.cache.Del(credential)
	}
	return v.ask(ctx, credential)
}

// Revalidate always consults the provider, so a revoked token is noticed
// even while its cache entry is still alive.
func (v *CredentialValidator) Revalidate(ctx context.Context, credential string) (domain.Session, error) {
	if err := checkFormat(credential); err != nil {
		return domain.Session{}, err
	}
	return v.ask(ctx, credential)
}

func (v *CredentialValidator) Invalidate(credential string) {
	v.cache.Del(credential)
}

// Wait blocks until pending cache writes are applied.
func (v *CredentialValidator) Wait() {
	v.cache.Wait()
}

func (v *CredentialValidator) Close() {
	v.cache.Close()
}

func (v *CredentialValidator) ask(ctx context.Context, credential string) (domain.Session, error) {
	session, err := v.provider.ValidateToken(ctx, credential)
	switch {
	case stderrors.Is(err, errors.ErrUnauthenticated):
		v.cache.Del(credential)
		return domain.Session{}, err
	case err != nil:
		v.log.Warn("Auth provider unreachable", "error", err)
		if stderrors.Is(err, errors.ErrAuthProviderUnavailable) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuthProviderUnavailable, err)
	}

	now := v.now()
	if session.Identity == "" || session.Expired(now) {
		v.cache.Del(credential)
		return domain.Session{}, fmt.Errorf("%w: session expired", errors.ErrUnauthenticated)
	}
	session.Credential = credential

	ttl := min(session.Remaining(now), v.cacheTTL)
	if ttl > 0 {
		v.cache.SetWithTTL(credential, session, 1, ttl)
	}
	return session, nil
}

func checkFormat(credential string) error {
	if credential == "" {
		return fmt.Errorf("%w: missing credential", errors.ErrUnauthenticated)
	}
	if len(credential) > maxCredentialLength || strings.IndexFunc(credential, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: malformed credential", errors.ErrUnauthenticated)
	}
	return nil
}

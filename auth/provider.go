package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalProvider validates the tokens minted by its own Signer.
// Revoked tokens are remembered by jti until they would have expired anyway.
type LocalProvider struct {
	signer  *Signer
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewLocalProvider(signer *Signer) *LocalProvider {
	return &LocalProvider{signer: signer, revoked: make(map[string]time.Time)}
}

func (p *LocalProvider) Issue(userID string, roles []string) (string, error) {
	return p.signer.GenerateToken(userID, roles)
}

func (p *LocalProvider) ValidateToken(_ context.Context, token string) (domain.Session, error) {
	claims, err := p.signer.ValidateToken(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if p.isRevoked(claims.ID) {
		return domain.Session{}, fmt.Errorf("%w: token revoked", errors.ErrUnauthenticated)
	}
	return toSession(claims, token), nil
}

// Revoke invalidates a still valid token. Revoking an invalid token is an error.
func (p *LocalProvider) Revoke(token string) error {
	claims, err := p.signer.ValidateToken(token)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.signer.now()
	for id, expiresAt := range p.revoked {
		if !now.Before(expiresAt) {
			delete(p.revoked, id)
		}
	}
	p.revoked[claims.ID] = claims.ExpiresAt.Time
	return nil
}

func (p *LocalProvider) isRevoked(tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.revoked[tokenID]
	return ok
}

func toSession(claims *CustomClaims, token string) domain.Session {
	session := domain.Session{Identity: claims.UserID, Credential: token}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session
}

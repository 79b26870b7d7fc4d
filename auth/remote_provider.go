package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const userEndpoint = "/auth/v1/user"

// RemoteProvider asks a hosted identity provider (Supabase style API)
// who owns a token. Only the provider can tell whether a token was revoked,
// so every call is a network round trip.
type RemoteProvider struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	fallbackTTL time.Duration
	now         func() time.Time
}

func NewRemoteProvider(baseURL, apiKey string, timeout, fallbackTTL time.Duration) *RemoteProvider {
	return &RemoteProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		client:      &http.Client{Timeout: timeout},
		fallbackTTL: fallbackTTL,
		now:         time.Now,
	}
}

type remoteUser struct {
	ID string `json:"id"`
}

func (p *RemoteProvider) ValidateToken(ctx context.Context, token string) (domain.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+userEndpoint, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuthProviderUnavailable, err)
	}
	req.Header.Set("Authorization", bearerPrefix+token)
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuthProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return domain.Session{}, fmt.Errorf("%w: provider rejected token", errors.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.Session{}, fmt.Errorf("%w: provider answered %d", errors.ErrAuthProviderUnavailable, resp.StatusCode)
	}

	var user remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return domain.Session{}, fmt.Errorf("%w: decoding user: %v", errors.ErrAuthProviderUnavailable, err)
	}
	if user.ID == "" {
		return domain.Session{}, fmt.Errorf("%w: provider returned no identity", errors.ErrUnauthenticated)
	}

	issuedAt, expiresAt := p.lifetime(token)
	return domain.Session{
		Identity:   user.ID,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		Credential: token,
	}, nil
}

// lifetime reads iat/exp without verifying the signature: the provider has
// just vouched for the token, we only need to know how long to trust it.
func (p *RemoteProvider) lifetime(token string) (time.Time, time.Time) {
	now := p.now()
	issuedAt, expiresAt := now, now.Add(p.fallbackTTL)

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return issuedAt, expiresAt
	}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return issuedAt, expiresAt
}

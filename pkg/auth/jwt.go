package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ServiceTokenConfig holds the settings for a ServiceToken source.
type ServiceTokenConfig struct {
	// Secret is the HMAC signing key (required).
	Secret []byte

	// Subject is the identity placed in the sub claim (required).
	Subject string

	// Issuer is placed in the iss claim. If empty, the claim is omitted.
	Issuer string

	// Audience is placed in the aud claim. If empty, the claim is omitted.
	Audience string

	// TTL is the token lifetime. Default: 15 minutes.
	TTL time.Duration

	// RenewBefore is how long before expiry a fresh token is minted.
	// Default: 1 minute.
	RenewBefore time.Duration
}

func (c *ServiceTokenConfig) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = 15 * time.Minute
	}
	if c.RenewBefore == 0 {
		c.RenewBefore = time.Minute
	}
}

// ServiceToken is a TokenSource that mints short-lived HS256-signed JWTs
// and caches them until shortly before expiry.
type ServiceToken struct {
	config ServiceTokenConfig

	// now is replaceable for tests.
	now func() time.Time

	mu      sync.Mutex
	current string
	expires time.Time
}

// NewServiceToken creates a ServiceToken source. It fails if the secret or
// subject is missing.
func NewServiceToken(cfg ServiceTokenConfig) (*ServiceToken, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: service token secret is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("auth: service token subject is required")
	}
	cfg.applyDefaults()
	return &ServiceToken{config: cfg, now: time.Now}, nil
}

// Token implements TokenSource. It returns the cached token while it is
// still fresh and mints a new one otherwise.
func (s *ServiceToken) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.current != "" && now.Before(s.expires.Add(-s.config.RenewBefore)) {
		return s.current, nil
	}

	expires := now.Add(s.config.TTL)
	claims := jwtlib.MapClaims{
		"sub": s.config.Subject,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}
	if s.config.Audience != "" {
		claims["aud"] = s.config.Audience
	}

	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", err
	}
	s.current = token
	s.expires = expires
	return token, nil
}

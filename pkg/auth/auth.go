// Package auth provides credential sources for outgoing API requests.
//
// A TokenSource produces the bearer token attached to each request. Two
// implementations are provided: StaticKey for plain API keys, and
// ServiceToken for short-lived signed JWTs with automatic renewal.
package auth

import "context"

// TokenSource produces a bearer token for an outgoing request. A source
// may be called concurrently and should return quickly; expensive renewal
// must be cached internally.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticKey is a TokenSource backed by a fixed API key.
type StaticKey string

// Token implements TokenSource.
func (k StaticKey) Token(ctx context.Context) (string, error) {
	return string(k), nil
}

// identity.go defines the identity provider abstraction. Credential
// verification is pluggable: a directory (LDAP) provider in production, a
// fixed-accounts provider in test mode. Providers only answer "who is this";
// session arbitration happens elsewhere.
package auth

import (
	"context"
	"errors"
)

// ErrBadCredentials is returned for any authentication failure against the
// identity provider. Callers surface it as a generic failure without saying
// whether the username or the password was wrong.
var ErrBadCredentials = errors.New("invalid credentials")

// Identity is the provider's answer for a verified credential pair.
type Identity struct {
	Username    string
	DisplayName string
	Email       string
	IsAdmin     bool
}

// IdentityProvider verifies credentials against an external source of truth.
type IdentityProvider interface {
	// Authenticate verifies the credential pair and returns the resolved
	// identity, or ErrBadCredentials on any verification failure.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)

	// Probe checks that the provider's backing service is reachable. Used by
	// startup diagnostics and the readiness endpoint.
	Probe(ctx context.Context) error
}

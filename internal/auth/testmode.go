// testmode.go implements the fixed-accounts identity provider. It exists so
// the application can run on a bench without a reachable directory server;
// Validate() in the config package refuses a directory-less setup unless test
// mode is explicitly enabled.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type testAccount struct {
	passwordHash []byte
	displayName  string
	isAdmin      bool
}

// TestModeProvider verifies credentials against two built-in accounts: one
// administrator ("admin"/"admin") and one operator ("operator"/"operator").
// Passwords are hashed at construction so the verification path is identical
// to a real credential check.
type TestModeProvider struct {
	accounts map[string]testAccount
}

// NewTestModeProvider creates the fixed-accounts provider.
func NewTestModeProvider() (*TestModeProvider, error) {
	accounts := make(map[string]testAccount)
	for username, meta := range map[string]struct {
		displayName string
		isAdmin     bool
	}{
		"admin":    {displayName: "Test Administrator", isAdmin: true},
		"operator": {displayName: "Test Operator", isAdmin: false},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(username), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash test account password: %w", err)
		}
		accounts[username] = testAccount{
			passwordHash: hash,
			displayName:  meta.displayName,
			isAdmin:      meta.isAdmin,
		}
	}
	return &TestModeProvider{accounts: accounts}, nil
}

// Authenticate checks the credential pair against the built-in accounts.
func (p *TestModeProvider) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	account, ok := p.accounts[username]
	if !ok {
		// Burn a comparison anyway so unknown and known usernames take the
		// same time
		_ = bcrypt.CompareHashAndPassword(p.accounts["operator"].passwordHash, []byte(password))
		return nil, ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword(account.passwordHash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	return &Identity{
		Username:    username,
		DisplayName: account.displayName,
		Email:       username + "@test.local",
		IsAdmin:     account.isAdmin,
	}, nil
}

// Probe always succeeds; there is no backing service.
func (p *TestModeProvider) Probe(ctx context.Context) error {
	return nil
}

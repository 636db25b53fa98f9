package auth

import (
	"context"
	"errors"
	"testing"
)

func newTestProvider(t *testing.T) *TestModeProvider {
	t.Helper()
	p, err := NewTestModeProvider()
	if err != nil {
		t.Fatalf("NewTestModeProvider: %v", err)
	}
	return p
}

func TestTestMode_AdminLogin(t *testing.T) {
	p := newTestProvider(t)

	identity, err := p.Authenticate(context.Background(), "admin", "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.IsAdmin {
		t.Error("admin account should be an administrator")
	}
	if identity.DisplayName == "" {
		t.Error("expected a display name")
	}
}

func TestTestMode_OperatorLogin(t *testing.T) {
	p := newTestProvider(t)

	identity, err := p.Authenticate(context.Background(), "operator", "operator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.IsAdmin {
		t.Error("operator account should not be an administrator")
	}
}

func TestTestMode_WrongPassword(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Authenticate(context.Background(), "admin", "wrong")
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("err = %v, want ErrBadCredentials", err)
	}
}

func TestTestMode_UnknownUser(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Authenticate(context.Background(), "ghost", "whatever")
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("err = %v, want ErrBadCredentials", err)
	}
}

func TestTestMode_ProbeAlwaysHealthy(t *testing.T) {
	p := newTestProvider(t)
	if err := p.Probe(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

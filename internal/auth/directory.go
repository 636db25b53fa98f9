// directory.go implements the LDAP identity provider used in production. Each
// login opens a fresh connection and binds as the user being verified
// (user@domain), then looks up the user's entry and group memberships to
// resolve display name, email, and admin standing.
package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/downtime-tracker/downtime-tracker/internal/config"
)

// DirectoryProvider verifies credentials against an LDAP directory server.
type DirectoryProvider struct {
	cfg config.DirectoryConfig
	// dial is swappable in tests
	dial func() (ldapConn, error)
}

// ldapConn is the subset of *ldap.Conn the provider uses
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// NewDirectoryProvider creates a provider for the configured directory server.
func NewDirectoryProvider(cfg config.DirectoryConfig) *DirectoryProvider {
	p := &DirectoryProvider{cfg: cfg}
	p.dial = p.dialDirectory
	return p
}

func (p *DirectoryProvider) dialDirectory() (ldapConn, error) {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	if p.cfg.UseTLS {
		return ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{
			ServerName: p.cfg.Host,
		}))
	}
	return ldap.DialURL("ldap://" + addr)
}

// Authenticate binds to the directory with the user's own credentials. A
// failed bind for any reason maps to ErrBadCredentials; the directory's more
// specific result codes are logged but never surfaced to the client.
func (p *DirectoryProvider) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	// The directory treats an empty password bind as anonymous, which would
	// "succeed" for any username
	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}

	conn, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("directory unreachable: %w", err)
	}
	defer conn.Close()

	bindName := username
	if p.cfg.Domain != "" && !strings.Contains(username, "@") {
		bindName = username + "@" + p.cfg.Domain
	}

	if err := conn.Bind(bindName, password); err != nil {
		slog.Debug("directory bind rejected", "username", username, "error", err)
		return nil, ErrBadCredentials
	}

	identity := &Identity{Username: username}

	entry, err := p.findUserEntry(conn, username)
	if err != nil {
		// The bind succeeded, so the credentials are good; treat a failed
		// attribute lookup as a degraded login rather than a rejection
		slog.Warn("directory entry lookup failed after successful bind", "username", username, "error", err)
		return identity, nil
	}

	identity.DisplayName = entry.GetAttributeValue("displayName")
	identity.Email = entry.GetAttributeValue("mail")
	identity.IsAdmin = p.memberOfAdminGroup(entry)

	return identity, nil
}

func (p *DirectoryProvider) findUserEntry(conn ldapConn, username string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		p.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		[]string{"displayName", "mail", "memberOf"},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("directory search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("no directory entry for %q", username)
	}
	return result.Entries[0], nil
}

// memberOfAdminGroup checks the entry's memberOf values for the configured
// admin group. Matching is on the group's CN, case-insensitive.
func (p *DirectoryProvider) memberOfAdminGroup(entry *ldap.Entry) bool {
	if p.cfg.AdminGroup == "" {
		return false
	}
	want := strings.ToLower(p.cfg.AdminGroup)
	for _, dn := range entry.GetAttributeValues("memberOf") {
		parsed, err := ldap.ParseDN(dn)
		if err != nil {
			continue
		}
		for _, rdn := range parsed.RDNs {
			for _, attr := range rdn.Attributes {
				if strings.EqualFold(attr.Type, "CN") && strings.ToLower(attr.Value) == want {
					return true
				}
			}
		}
	}
	return false
}

// Probe opens and closes a connection to the directory server.
func (p *DirectoryProvider) Probe(ctx context.Context) error {
	conn, err := p.dial()
	if err != nil {
		return fmt.Errorf("directory unreachable: %w", err)
	}
	return conn.Close()
}

// Package auth turns protocol logins into storage sessions.
//
// A login (username, password) is checked against an optional allow-list,
// then both halves are passed through optional transform maps to obtain the
// storage access key and secret. The storage service is the final authority:
// the session is established only if it accepts the transformed credentials.
// Every failure is reported to the client identically, so a client cannot
// tell which half of the pair was wrong.
package auth

import (
	"context"
	"slices"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/internal/ratelimiter"
	"github.com/marmos91/dittoftp/pkg/metrics"
	"github.com/marmos91/dittoftp/pkg/storage"
	"github.com/marmos91/dittoftp/pkg/vfs"
)

// AnonymousUser is never a known user.
const AnonymousUser = "anonymous"

// FullPermissions lists every permission: list, read, delete, write. The
// storage service's own policy is the only access control.
const FullPermissions = "lrdw"

// Config holds the credential transform configuration. It is read-only once
// the Authenticator is built.
type Config struct {
	// AllowedUsers restricts logins to the listed usernames.
	// nil disables the allow-list; an empty non-nil slice rejects everyone.
	AllowedUsers []string

	// UsernameMap maps protocol usernames to storage access key IDs.
	// Unmapped usernames pass through unchanged.
	UsernameMap map[string]string

	// PasswordMap maps protocol passwords to storage secrets.
	// Unmapped passwords pass through unchanged.
	PasswordMap map[string]string

	// RateLimit throttles login attempts per client host.
	RateLimit RateLimitConfig

	// PathSeparator prefixes home directories. Default "/".
	PathSeparator string
}

// RateLimitConfig configures login throttling. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond uint
	Burst             uint
}

// Authenticator validates logins and opens storage sessions.
//
// Thread Safety:
// Safe for concurrent use; all configuration is immutable after New.
type Authenticator struct {
	service     storage.Service
	allowed     map[string]struct{}
	usernameMap map[string]string
	passwordMap map[string]string
	limiter     *ratelimiter.RateLimiter
	metrics     metrics.AuthMetrics
	sep         string
}

// New creates an Authenticator over service. m may be nil.
func New(service storage.Service, cfg Config, m metrics.AuthMetrics) *Authenticator {
	if m == nil {
		m = metrics.NewNoopAuthMetrics()
	}
	if cfg.PathSeparator == "" {
		cfg.PathSeparator = "/"
	}

	a := &Authenticator{
		service:     service,
		usernameMap: cloneMap(cfg.UsernameMap),
		passwordMap: cloneMap(cfg.PasswordMap),
		limiter:     ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		metrics:     m,
		sep:         cfg.PathSeparator,
	}

	if cfg.AllowedUsers != nil {
		a.allowed = make(map[string]struct{}, len(cfg.AllowedUsers))
		for _, u := range cfg.AllowedUsers {
			a.allowed[u] = struct{}{}
		}
		if len(a.allowed) == 0 {
			logger.Warn("Allow-list is empty, every login will be rejected")
		}
	}

	return a
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type clientHostKey struct{}

// WithClientHost attaches the client's host to ctx so logins are throttled
// per host. Without it, throttling is per username.
func WithClientHost(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, clientHostKey{}, host)
}

func clientHost(ctx context.Context) (string, bool) {
	host, ok := ctx.Value(clientHostKey{}).(string)
	return host, ok && host != ""
}

// TransformUsername returns the storage access key ID for username.
func (a *Authenticator) TransformUsername(username string) string {
	if mapped, ok := a.usernameMap[username]; ok {
		return mapped
	}
	return username
}

// TransformPassword returns the storage secret for password.
func (a *Authenticator) TransformPassword(password string) string {
	if mapped, ok := a.passwordMap[password]; ok {
		return mapped
	}
	return password
}

// IsAllowed reports whether username passes the allow-list.
func (a *Authenticator) IsAllowed(username string) bool {
	if a.allowed == nil {
		return true
	}
	_, ok := a.allowed[username]
	return ok
}

// Authenticate validates a login and opens a storage session for it.
//
// The returned session's principal is the original username. Failures are
// *vfs.Error of kind KindAuth; the storage service's own error is logged,
// never returned.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*vfs.Session, error) {
	key, ok := clientHost(ctx)
	if !ok {
		key = username
	}

	if !a.limiter.Allow(key) {
		a.metrics.RecordLogin(metrics.LoginRateLimited)
		logger.Warn("Login rate limited", logger.KeyPrincipal, username, logger.KeyClientIP, key)
		return nil, vfs.NewError(vfs.KindAuth, "login", "", "too many attempts")
	}

	if !a.IsAllowed(username) {
		a.metrics.RecordLogin(metrics.LoginNotAllowed)
		logger.Warn("Login refused by allow-list", logger.KeyPrincipal, username)
		return nil, vfs.NewError(vfs.KindAuth, "login", "", "not allowed")
	}

	creds := storage.Credentials{
		AccessKeyID:     a.TransformUsername(username),
		SecretAccessKey: a.TransformPassword(password),
	}

	client, err := a.service.Open(ctx, creds)
	if err != nil {
		a.metrics.RecordLogin(metrics.LoginInvalidCredentials)
		logger.Warn("Storage rejected login",
			logger.KeyPrincipal, username,
			logger.KeyBackend, a.service.Name(),
			logger.KeyError, err)
		return nil, vfs.NewError(vfs.KindAuth, "login", "", "invalid credentials")
	}

	session := vfs.NewSession(username, creds, client)
	a.metrics.RecordLogin(metrics.LoginSuccess)
	logger.Info("Login succeeded",
		logger.KeyPrincipal, username,
		logger.KeySession, session.ID,
		logger.KeyBackend, a.service.Name())
	return session, nil
}

// ValidateAuthentication reports whether the login would succeed. The
// session opened to check it is discarded.
func (a *Authenticator) ValidateAuthentication(ctx context.Context, username, password string) bool {
	_, err := a.Authenticate(ctx, username, password)
	return err == nil
}

// HasUser reports whether username can be a user at all. Only the anonymous
// user is refused up front; the storage service decides the rest.
func (a *Authenticator) HasUser(username string) bool {
	return username != AnonymousUser
}

// HasPermissions always grants: no ACL is modeled locally.
func (a *Authenticator) HasPermissions(username, perm, path string) bool {
	return true
}

// Permissions returns the permission string for username.
func (a *Authenticator) Permissions(username string) string {
	return FullPermissions
}

// HomeDirectory returns the separator followed by the untransformed username.
func (a *Authenticator) HomeDirectory(username string) string {
	return a.sep + username
}

// LoginMessage greets username after login.
func (a *Authenticator) LoginMessage(username string) string {
	return "Welcome " + username
}

// QuitMessage says goodbye to username.
func (a *Authenticator) QuitMessage(username string) string {
	return "Goodbye " + username
}

// AllowedUsers returns a sorted copy of the allow-list, or nil when disabled.
func (a *Authenticator) AllowedUsers() []string {
	if a.allowed == nil {
		return nil
	}
	users := make([]string, 0, len(a.allowed))
	for u := range a.allowed {
		users = append(users, u)
	}
	slices.Sort(users)
	return users
}

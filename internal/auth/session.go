package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"sharkninja-client/internal/config"
	"sharkninja-client/internal/logging"
)

// State describes where the session's credential sits in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateValid
	StateExpiringSoon
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValid:
		return "valid"
	case StateExpiringSoon:
		return "expiring_soon"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session owns the credential for one account and is the single authority on
// whether it is usable right now. It also owns the HTTP client shared by the
// auth strategies and the request dispatcher, so connections are pooled across
// the whole session and released on Close.
//
// A Session serves one account at a time and is not safe for concurrent use.
type Session struct {
	email    string
	password string

	cred Credential
	auth *Authenticator
	skew time.Duration

	httpClient *http.Client
	logger     *logrus.Entry
	nowFunc    func() time.Time
}

// Option adjusts a Session during construction.
type Option func(*Session)

// WithNow overrides the session's clock. Used by tests to pin wall time.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.nowFunc = now }
}

// WithHTTPClient replaces the session's HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) { s.httpClient = client }
}

// WithStrategies replaces the configured sign-in strategies with an explicit
// ordered list.
func WithStrategies(strategies ...Strategy) Option {
	return func(s *Session) {
		s.auth = &Authenticator{strategies: strategies, logger: s.logger}
	}
}

// NewSession creates a session for the account in cfg. No network I/O happens
// until the first sign-in; the HTTP client dials lazily and reuses connections
// across calls.
func NewSession(cfg *config.Config, logger *logrus.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Session{
		email:    cfg.Email,
		password: cfg.Password,
		skew:     time.Duration(cfg.ExpirySkew) * time.Second,
		logger:   logging.NewComponentLogger(logger, "session"),
		nowFunc:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		s.httpClient = newHTTPClient(time.Duration(cfg.RequestTimeout) * time.Second)
	}
	if s.auth == nil {
		auth, err := NewAuthenticator(cfg, s.httpClient, s.logger)
		if err != nil {
			return nil, err
		}
		s.auth = auth
	}

	return s, nil
}

// newHTTPClient builds the pooled HTTP client shared by every network call in
// the session.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// State recomputes the credential's lifecycle position from the current
// clock. Time advancing moves a credential through valid, expiring soon, and
// expired without any explicit transition.
func (s *Session) State() State {
	if !s.cred.Authenticated || s.cred.AccessToken == "" {
		return StateUnauthenticated
	}

	now := s.nowFunc()
	switch {
	case s.cred.Expired(now):
		return StateExpired
	case s.cred.ExpiringSoon(now, s.skew):
		return StateExpiringSoon
	default:
		return StateValid
	}
}

// CheckAuth confirms the credential is usable right now. Missing, expired, or
// inconsistent credentials fail with ErrNotAuthenticated and the session drops
// to unauthenticated. When strict is set, a credential inside the expiry skew
// window additionally fails with ErrAuthExpiringSoon while the token itself
// still works, so callers can renew before requests start failing.
func (s *Session) CheckAuth(strict bool) error {
	if !s.cred.Consistent() {
		s.logger.Warn("Credential marked authenticated without a token, clearing")
		s.cred = Credential{}
		return ErrNotAuthenticated
	}

	now := s.nowFunc()
	if !s.cred.Usable(now) {
		s.cred.Authenticated = false
		return ErrNotAuthenticated
	}
	if strict && s.cred.ExpiringSoon(now, s.skew) {
		return ErrAuthExpiringSoon
	}
	return nil
}

// SignIn authenticates with the configured strategies and installs the
// resulting credential.
func (s *Session) SignIn(ctx context.Context) error {
	cred, err := s.auth.SignIn(ctx, s.email, s.password)
	if err != nil {
		return err
	}
	if err := s.SetCredential(cred); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"strategy":   cred.Strategy,
		"expires_at": cred.ExpiresAt.Format(time.RFC3339),
	}).Info("Signed in")
	return nil
}

// Refresh renews the credential through the strategy that issued it. Without
// a refresh token it degrades to a full sign-in.
func (s *Session) Refresh(ctx context.Context) error {
	cred, err := s.auth.Refresh(ctx, s.cred, s.email, s.password)
	if err != nil {
		return err
	}
	if err := s.SetCredential(cred); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"strategy":   cred.Strategy,
		"expires_at": cred.ExpiresAt.Format(time.RFC3339),
	}).Debug("Credential renewed")
	return nil
}

// EnsureValid makes the credential usable, renewing or signing in as needed.
// A credential already outside the skew window is left untouched.
func (s *Session) EnsureValid(ctx context.Context) error {
	if s.State() == StateValid {
		return nil
	}
	return s.Refresh(ctx)
}

// SetCredential installs a credential, rejecting one that claims to be
// authenticated without carrying a token.
func (s *Session) SetCredential(cred Credential) error {
	if !cred.Consistent() {
		return fmt.Errorf("credential marked authenticated without a token")
	}
	s.cred = cred
	return nil
}

// Credential returns a copy of the current credential.
func (s *Session) Credential() Credential {
	return s.cred
}

// Token returns the bearer token after a non-strict validity check.
func (s *Session) Token() (string, error) {
	if err := s.CheckAuth(false); err != nil {
		return "", err
	}
	return s.cred.AccessToken, nil
}

// SignOut clears the credential. Calling it again has no further effect.
func (s *Session) SignOut() {
	s.cred = Credential{}
	s.logger.Debug("Signed out")
}

// Invalidate discards the credential after the service rejected it, so the
// next call re-authenticates instead of retrying with a dead token.
func (s *Session) Invalidate() {
	s.cred = Credential{}
	s.logger.Warn("Credential rejected by service, session invalidated")
}

// HTTPClient exposes the session's pooled HTTP client for collaborators that
// dispatch requests on this session's behalf.
func (s *Session) HTTPClient() *http.Client {
	return s.httpClient
}

// Close releases the session's pooled connections. The credential is left
// untouched.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
}

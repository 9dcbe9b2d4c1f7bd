package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"sharkninja-client/internal/config"
	"sharkninja-client/internal/logging"
)

// fakeClock lets tests move wall time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestSession(t *testing.T, clock *fakeClock, strategies ...Strategy) *Session {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Email = "user@example.com"
	cfg.Password = "hunter2"

	opts := []Option{WithNow(clock.Now)}
	if len(strategies) > 0 {
		opts = append(opts, WithStrategies(strategies...))
	}

	session, err := NewSession(cfg, logging.Initialize("debug"), opts...)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return session
}

func TestNewSessionValidation(t *testing.T) {
	logger := logging.Initialize("debug")

	if _, err := NewSession(nil, logger); err == nil {
		t.Error("NewSession() with nil config expected error")
	}
	if _, err := NewSession(config.DefaultConfig(), nil); err == nil {
		t.Error("NewSession() with nil logger expected error")
	}

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{"carrier-pigeon"}
	if _, err := NewSession(cfg, logger); err == nil {
		t.Error("NewSession() with unknown strategy expected error")
	}
}

func TestSessionStateLifecycle(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	if got := session.State(); got != StateUnauthenticated {
		t.Fatalf("initial State() = %v, want %v", got, StateUnauthenticated)
	}

	cred := Credential{
		AccessToken:   "abc",
		RefreshToken:  "def",
		ExpiresAt:     start.Add(time.Hour),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	if got := session.State(); got != StateValid {
		t.Errorf("State() = %v, want %v", got, StateValid)
	}

	// Time alone moves the credential through the tail of its life.
	clock.Advance(55 * time.Minute)
	if got := session.State(); got != StateExpiringSoon {
		t.Errorf("State() inside skew window = %v, want %v", got, StateExpiringSoon)
	}

	clock.Advance(10 * time.Minute)
	if got := session.State(); got != StateExpired {
		t.Errorf("State() past expiry = %v, want %v", got, StateExpired)
	}

	session.SignOut()
	if got := session.State(); got != StateUnauthenticated {
		t.Errorf("State() after sign-out = %v, want %v", got, StateUnauthenticated)
	}
}

func TestSessionCheckAuthExpired(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	cred := Credential{
		AccessToken:   "abc",
		RefreshToken:  "def",
		ExpiresAt:     start.Add(-time.Minute),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	if err := session.CheckAuth(false); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CheckAuth(false) = %v, want ErrNotAuthenticated", err)
	}

	// The refresh token survives the failed check so renewal can still work.
	if got := session.Credential().RefreshToken; got != "def" {
		t.Errorf("RefreshToken after failed check = %q, want %q", got, "def")
	}
}

func TestSessionCheckAuthExpiringSoon(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	cred := Credential{
		AccessToken:   "abc",
		ExpiresAt:     start.Add(5 * time.Minute),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	if err := session.CheckAuth(false); err != nil {
		t.Errorf("CheckAuth(false) = %v, want nil inside skew window", err)
	}
	if err := session.CheckAuth(true); !errors.Is(err, ErrAuthExpiringSoon) {
		t.Errorf("CheckAuth(true) = %v, want ErrAuthExpiringSoon", err)
	}
}

func TestSessionCheckAuthMissingCredential(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	if err := session.CheckAuth(false); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CheckAuth(false) = %v, want ErrNotAuthenticated", err)
	}
	if err := session.CheckAuth(true); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CheckAuth(true) = %v, want ErrNotAuthenticated", err)
	}
}

func TestSessionCheckAuthClearsInconsistentCredential(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	// Corrupt the credential directly, bypassing SetCredential's guard.
	session.cred = Credential{
		RefreshToken:  "def",
		ExpiresAt:     clock.now.Add(time.Hour),
		Authenticated: true,
	}

	if err := session.CheckAuth(false); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CheckAuth(false) = %v, want ErrNotAuthenticated", err)
	}
	if got := session.Credential(); got != (Credential{}) {
		t.Errorf("credential not cleared after invariant violation: %+v", got)
	}
}

func TestSessionSignIn(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	stub := &stubStrategy{
		name: "stub",
		cred: Credential{
			AccessToken:   "abc",
			RefreshToken:  "def",
			ExpiresAt:     start.Add(time.Hour),
			Authenticated: true,
		},
	}
	session := newTestSession(t, clock, stub)

	if err := session.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if got := session.State(); got != StateValid {
		t.Errorf("State() after sign-in = %v, want %v", got, StateValid)
	}
	if got := session.Credential().Strategy; got != "stub" {
		t.Errorf("credential Strategy = %q, want %q", got, "stub")
	}

	token, err := session.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "abc" {
		t.Errorf("Token() = %q, want %q", token, "abc")
	}
}

func TestSessionSignInFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	stub := &stubStrategy{name: "stub", signInErr: newAuthError("stub", 401, ErrInvalidCredentials)}
	session := newTestSession(t, clock, stub)

	if err := session.SignIn(context.Background()); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("SignIn() error = %v, want ErrInvalidCredentials", err)
	}
	if got := session.State(); got != StateUnauthenticated {
		t.Errorf("State() after failed sign-in = %v, want %v", got, StateUnauthenticated)
	}
}

func TestSessionRefreshWithoutTokenSignsIn(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	stub := &stubStrategy{
		name: "stub",
		cred: Credential{
			AccessToken:   "abc",
			ExpiresAt:     start.Add(time.Hour),
			Authenticated: true,
		},
	}
	session := newTestSession(t, clock, stub)

	if err := session.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if stub.signIns != 1 {
		t.Errorf("sign-ins = %d, want 1 when no refresh token is held", stub.signIns)
	}
	if stub.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0", stub.refreshes)
	}
	if got := session.State(); got != StateValid {
		t.Errorf("State() = %v, want %v", got, StateValid)
	}
}

func TestSessionRecoversExpiredCredentialViaRefresh(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	stub := &stubStrategy{
		name: "stub",
		cred: Credential{
			AccessToken:   "abc",
			RefreshToken:  "def",
			ExpiresAt:     start.Add(time.Hour),
			Authenticated: true,
		},
	}
	session := newTestSession(t, clock, stub)

	if err := session.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	clock.Advance(2 * time.Hour)
	if err := session.CheckAuth(false); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("CheckAuth(false) = %v, want ErrNotAuthenticated", err)
	}

	stub.cred.ExpiresAt = clock.now.Add(time.Hour)
	if err := session.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}

	if stub.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", stub.refreshes)
	}
	if stub.signIns != 1 {
		t.Errorf("sign-ins = %d, want only the initial one", stub.signIns)
	}
	if got := session.State(); got != StateValid {
		t.Errorf("State() after recovery = %v, want %v", got, StateValid)
	}
}

func TestSessionEnsureValidLeavesFreshCredentialAlone(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	stub := &stubStrategy{name: "stub"}
	session := newTestSession(t, clock, stub)

	cred := Credential{
		AccessToken:   "abc",
		ExpiresAt:     start.Add(time.Hour),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	if err := session.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}
	if stub.signIns != 0 || stub.refreshes != 0 {
		t.Errorf("EnsureValid() touched the network: sign-ins=%d refreshes=%d", stub.signIns, stub.refreshes)
	}
}

func TestSessionEnsureValidRenewsInsideSkewWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	stub := &stubStrategy{
		name: "stub",
		cred: Credential{
			AccessToken:   "renewed",
			RefreshToken:  "def",
			ExpiresAt:     start.Add(2 * time.Hour),
			Authenticated: true,
		},
	}
	session := newTestSession(t, clock, stub)

	issued := Credential{
		AccessToken:   "abc",
		RefreshToken:  "def",
		ExpiresAt:     start.Add(5 * time.Minute),
		Authenticated: true,
		Strategy:      "stub",
	}
	if err := session.SetCredential(issued); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	if err := session.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid() error = %v", err)
	}

	if stub.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1 inside the skew window", stub.refreshes)
	}
	if got := session.Credential().AccessToken; got != "renewed" {
		t.Errorf("AccessToken = %q, want %q", got, "renewed")
	}
}

func TestSessionSignOutIdempotent(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	cred := Credential{
		AccessToken:   "abc",
		RefreshToken:  "def",
		ExpiresAt:     start.Add(time.Hour),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	session.SignOut()
	if got := session.Credential(); got != (Credential{}) {
		t.Fatalf("credential after sign-out = %+v, want empty", got)
	}

	session.SignOut()
	if got := session.Credential(); got != (Credential{}) {
		t.Errorf("credential after second sign-out = %+v, want empty", got)
	}
}

func TestSessionSetCredentialRejectsInconsistent(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	good := Credential{
		AccessToken:   "abc",
		ExpiresAt:     start.Add(time.Hour),
		Authenticated: true,
	}
	if err := session.SetCredential(good); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	bad := Credential{Authenticated: true, ExpiresAt: start.Add(time.Hour)}
	if err := session.SetCredential(bad); err == nil {
		t.Fatal("SetCredential() accepted a credential without a token")
	}

	// The previous credential survives a rejected install.
	if got := session.Credential().AccessToken; got != "abc" {
		t.Errorf("AccessToken = %q, want %q", got, "abc")
	}
}

func TestSessionInvalidate(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	cred := Credential{
		AccessToken:   "abc",
		RefreshToken:  "def",
		ExpiresAt:     start.Add(time.Hour),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	session.Invalidate()

	if err := session.CheckAuth(false); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CheckAuth(false) after invalidate = %v, want ErrNotAuthenticated", err)
	}
	if _, err := session.Token(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Token() after invalidate = %v, want ErrNotAuthenticated", err)
	}
}

func TestSessionTokenRequiresUsableCredential(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	session := newTestSession(t, clock, &stubStrategy{name: "stub"})

	if _, err := session.Token(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Token() without credential = %v, want ErrNotAuthenticated", err)
	}

	cred := Credential{
		AccessToken:   "abc",
		ExpiresAt:     start.Add(time.Hour),
		Authenticated: true,
	}
	if err := session.SetCredential(cred); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	token, err := session.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "abc" {
		t.Errorf("Token() = %q, want %q", token, "abc")
	}

	clock.Advance(2 * time.Hour)
	if _, err := session.Token(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Token() after expiry = %v, want ErrNotAuthenticated", err)
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"sharkninja-client/internal/config"
)

// Strategy is one concrete login/refresh protocol. Implementations are
// stateless: they return a new Credential and never touch shared state.
type Strategy interface {
	// Name identifies the strategy in errors, logs, and issued credentials.
	Name() string

	// SignIn exchanges account credentials for a Credential.
	SignIn(ctx context.Context, email, password string) (Credential, error)

	// Refresh exchanges a refresh token for a new Credential. It is only
	// called when cred.RefreshToken is non-empty.
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}

// Authenticator tries an ordered list of sign-in strategies and returns the
// first success. It replaces the trial-and-error endpoint probing of earlier
// client versions with an explicit, auditable strategy list.
type Authenticator struct {
	strategies []Strategy
	logger     *logrus.Entry
}

// NewAuthenticator builds the strategy list named in the configuration,
// sharing the session's HTTP client across strategies.
func NewAuthenticator(cfg *config.Config, httpClient *http.Client, logger *logrus.Entry) (*Authenticator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var strategies []Strategy
	for _, name := range cfg.Strategies {
		switch name {
		case "idp":
			strategies = append(strategies, newIDPStrategy(cfg, httpClient))
		case "oidc":
			strategies = append(strategies, newOIDCStrategy(cfg, httpClient))
		default:
			return nil, fmt.Errorf("unknown sign-in strategy %q", name)
		}
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one sign-in strategy is required")
	}

	return &Authenticator{strategies: strategies, logger: logger}, nil
}

// NewAuthenticatorWithStrategies builds an authenticator over an explicit
// strategy list, in order of preference.
func NewAuthenticatorWithStrategies(logger *logrus.Entry, strategies ...Strategy) (*Authenticator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one sign-in strategy is required")
	}
	return &Authenticator{strategies: strategies, logger: logger}, nil
}

// SignIn tries each strategy in order and returns the first success. When
// every strategy fails the first failure is surfaced; later failures are
// joined so nothing is swallowed.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (Credential, error) {
	if len(a.strategies) == 0 {
		return Credential{}, fmt.Errorf("no sign-in strategies configured")
	}

	var failures []error
	for _, s := range a.strategies {
		cred, err := s.SignIn(ctx, email, password)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"strategy": s.Name(),
			}).WithError(err).Debug("Sign-in strategy failed")
			failures = append(failures, err)
			continue
		}

		cred.Strategy = s.Name()
		a.logger.WithField("strategy", s.Name()).Debug("Sign-in strategy succeeded")
		return cred, nil
	}

	return Credential{}, errors.Join(failures...)
}

// Refresh exchanges the credential's refresh token via the strategy that
// issued it. Without a refresh token, or when the issuing strategy is no
// longer configured, it degrades to a full sign-in.
func (a *Authenticator) Refresh(ctx context.Context, cred Credential, email, password string) (Credential, error) {
	if cred.RefreshToken == "" {
		return a.SignIn(ctx, email, password)
	}

	s := a.strategyNamed(cred.Strategy)
	if s == nil {
		a.logger.WithField("strategy", cred.Strategy).Debug("Issuing strategy not configured, performing full sign-in")
		return a.SignIn(ctx, email, password)
	}

	next, err := s.Refresh(ctx, cred)
	if err != nil {
		return Credential{}, err
	}

	next.Strategy = s.Name()
	return next, nil
}

func (a *Authenticator) strategyNamed(name string) Strategy {
	for _, s := range a.strategies {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

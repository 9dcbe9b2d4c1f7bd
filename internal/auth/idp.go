package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sharkninja-client/internal/config"
)

// defaultTokenLifetime is assumed when the IDP omits expires_in.
const defaultTokenLifetime = 3600 * time.Second

// idpStrategy signs in against the SharkNinja identity provider. This is the
// primary strategy; it replaced the Ayla Networks user endpoints.
type idpStrategy struct {
	authURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	nowFunc      func() time.Time
}

func newIDPStrategy(cfg *config.Config, httpClient *http.Client) *idpStrategy {
	return &idpStrategy{
		authURL:      cfg.AuthURL,
		clientID:     cfg.AppID,
		clientSecret: cfg.AppSecret,
		httpClient:   httpClient,
		nowFunc:      time.Now,
	}
}

func (s *idpStrategy) Name() string { return "idp" }

// loginRequest is the IDP sign-in payload. Client credentials are only sent
// when configured.
type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// loginResponse is the IDP token response. expires_in is optional.
type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (s *idpStrategy) SignIn(ctx context.Context, email, password string) (Credential, error) {
	payload := loginRequest{
		Email:        email,
		Password:     password,
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
	}
	return s.exchange(ctx, s.authURL, payload)
}

func (s *idpStrategy) Refresh(ctx context.Context, cred Credential) (Credential, error) {
	payload := refreshRequest{RefreshToken: cred.RefreshToken}
	return s.exchange(ctx, s.authURL+"/refresh", payload)
}

// exchange posts a JSON payload to the IDP and converts the response into a
// Credential, mapping status codes onto the auth error taxonomy.
func (s *idpStrategy) exchange(ctx context.Context, url string, payload interface{}) (Credential, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Credential{}, newAuthError(s.Name(), 0, fmt.Errorf("failed to marshal request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Credential{}, newAuthError(s.Name(), 0, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Credential{}, newAuthError(s.Name(), 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Credential{}, newAuthError(s.Name(), resp.StatusCode, ErrEndpointNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return Credential{}, newAuthError(s.Name(), resp.StatusCode, ErrInvalidCredentials)
	case resp.StatusCode != http.StatusOK:
		return Credential{}, newAuthError(s.Name(), resp.StatusCode, ErrUnexpectedResponse)
	}

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Credential{}, newAuthError(s.Name(), resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if result.Token == "" {
		return Credential{}, newAuthError(s.Name(), resp.StatusCode, ErrMalformedResponse)
	}

	lifetime := defaultTokenLifetime
	if result.ExpiresIn > 0 {
		lifetime = time.Duration(result.ExpiresIn) * time.Second
	}

	return Credential{
		AccessToken:   result.Token,
		RefreshToken:  result.RefreshToken,
		ExpiresAt:     s.nowFunc().Add(lifetime),
		Authenticated: true,
	}, nil
}

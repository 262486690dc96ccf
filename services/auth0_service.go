package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hearthbakery/bakery-orders-api/config"
)

// ErrUserInfoRejected means Auth0 refused the access token at /userinfo.
var ErrUserInfoRejected = errors.New("auth0 rejected the access token")

// Auth0UserInfo is the subset of Auth0's /userinfo response used to register a profile
type Auth0UserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	PhoneNumber   string `json:"phone_number"`
}

// MissingField names the first profile field Auth0 left empty, or "" when complete.
func (u *Auth0UserInfo) MissingField() string {
	switch {
	case strings.TrimSpace(u.Email) == "":
		return "email"
	case strings.TrimSpace(u.Name) == "":
		return "name"
	}
	return ""
}

// Auth0Service looks up identity details for registering bakery customers and staff
type Auth0Service struct {
	userInfoURL string
	httpClient  *http.Client
}

// NewAuth0Service creates a new Auth0 service instance. A domain carrying a
// scheme is used as-is so tests can point it at a local server.
func NewAuth0Service(cfg *config.Config) *Auth0Service {
	base := cfg.Auth0Domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Auth0Service{
		userInfoURL: strings.TrimSuffix(base, "/") + "/userinfo",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetUserInfo fetches the caller's profile from Auth0 using their access token
func (s *Auth0Service) GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("warning: failed to close userinfo response: %v", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUserInfoRejected
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo Auth0UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	return &userInfo, nil
}

// Copyright 2026 The FleetDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds identity provider client configuration.
type Config struct {
	// CookieName is the session cookie carrying the provider's JWT.
	CookieName string
	// SigningKey verifies the session JWT signature.
	SigningKey []byte
	// BaseURL is the provider's management API, used for membership
	// lookups.
	BaseURL string
	// APIKey authenticates management API calls.
	APIKey string
	// Timeout bounds membership fetches.
	Timeout time.Duration
}

// Client is the HTTP-backed identity provider implementation. Session
// tokens are verified locally (shared-secret HMAC); membership lookups
// go to the provider's API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates an identity provider client.
func NewClient(cfg Config) *Client {
	if cfg.CookieName == "" {
		cfg.CookieName = "__session"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// UserFromRequest verifies the session cookie and extracts the user ID
// from the token subject.
func (c *Client) UserFromRequest(r *http.Request) (*User, error) {
	cookie, err := r.Cookie(c.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.cfg.SigningKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidSession
	}
	return &User{ID: sub}, nil
}

// Memberships fetches the user's organization memberships from the
// provider API.
func (c *Client) Memberships(ctx context.Context, userID string) ([]Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/users/" + userID + "/organization_memberships"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		OrganizationMemberships []Membership `json:"organizationMemberships"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode memberships response: %w", err)
	}
	return payload.OrganizationMemberships, nil
}

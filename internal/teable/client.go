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

package teable

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// DefaultTimeout bounds every backend round trip. The backend has no
// documented SLA; a stuck call must not hold a handler open.
const DefaultTimeout = 15 * time.Second

// Client talks to the external table service on behalf of exactly one
// tenant. It is constructed per request from a resolved tenant context
// and must never be shared or cached across tenants, to avoid credential
// bleed.
type Client struct {
	baseURL    string
	credential string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a client from a resolved tenant context.
func NewClient(tc *tenant.Context, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(tc.Config.APIURL, "/"),
		credential: tc.Credential,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch is the raw escape hatch for backend endpoints not otherwise
// wrapped (attachment signing, notify, schema introspection). It attaches
// the bearer credential, applies the timeout, and returns the response
// body and status. A non-2xx status is returned as an *UpstreamError.
func (c *Client) Fetch(ctx context.Context, method, path string, contentType string, body io.Reader) ([]byte, int, error) {
	if c.credential == "" {
		return nil, 0, ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, ErrUpstreamTimeout
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, resp.StatusCode, &UpstreamError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, resp.StatusCode, nil
}

func (c *Client) fetchJSON(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	data, _, err := c.Fetch(ctx, method, path, contentType, body)
	return data, err
}

func queryString(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

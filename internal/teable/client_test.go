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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

func testClient(t *testing.T, backend *httptest.Server, opts ...Option) *Client {
	t.Helper()
	tc := &tenant.Context{
		TenantID: "acme",
		Config: &tenant.Config{
			ID:     "acme",
			Name:   "Acme",
			APIURL: backend.URL,
			BaseID: "bse1",
			Tables: map[string]string{tenant.TableWorkSchedule: "tbl1"},
			Fields: map[string]map[string]string{},
		},
		Credential: "test-credential",
	}
	return NewClient(tc, opts...)
}

func TestClient_Fetch_AttachesAuth(t *testing.T) {
	var gotAuth, gotReqID string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	client := testClient(t, backend)
	_, status, err := client.Fetch(context.Background(), http.MethodGet, "/table/tbl1/record", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bearer test-credential", gotAuth)
	assert.NotEmpty(t, gotReqID)
}

func TestClient_Fetch_MissingCredential(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called without a credential")
	}))
	defer backend.Close()

	client := testClient(t, backend)
	client.credential = ""

	_, _, err := client.Fetch(context.Background(), http.MethodGet, "/table/tbl1/record", "", nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

// TestPurpose: Validates that a stalled backend call is cut off by the per-call timeout.
// Scope: Unit Test
// Expected: Fetch returns ErrUpstreamTimeout instead of hanging.
// Test Case ID: GW-01
func TestClient_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer backend.Close()
	defer close(release)

	client := testClient(t, backend, WithTimeout(50*time.Millisecond))

	_, _, err := client.Fetch(context.Background(), http.MethodGet, "/table/tbl1/record", "", nil)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}

// TestPurpose: Validates that a non-2xx backend response surfaces as an UpstreamError carrying status and raw body.
// Scope: Unit Test
// Expected: The status code and the backend's error body are preserved verbatim.
// Test Case ID: GW-02
func TestClient_Fetch_UpstreamError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"backend exploded"}`))
	}))
	defer backend.Close()

	client := testClient(t, backend)
	_, _, err := client.Fetch(context.Background(), http.MethodGet, "/table/tbl1/record", "", nil)

	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.JSONEq(t, `{"message":"backend exploded"}`, string(ue.Body))
}

// Package testutil provides testing utilities for the TechDirect client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// TokenEndpointPath is the mock's OAuth2 token exchange path.
const TokenEndpointPath = "/auth/oauth/v2/token"

// AssetEndpointPath is the mock's entitlements resource path.
const AssetEndpointPath = "/asset-entitlements"

// MockResponse defines the behavior for one canned vendor response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockVendor is a configurable mock TechDirect server: a token endpoint
// plus an asset-entitlements endpoint with per-tag scripted responses.
type MockVendor struct {
	server *httptest.Server

	mu        sync.RWMutex
	responses map[string][]MockResponse // service tag -> response sequence
	served    map[string]int
	tokenFn   func(w http.ResponseWriter, r *http.Request)

	// Tracking
	TokenRequests     int
	AssetRequests     int
	LastAuthorization string
	LastUserAgent     string
}

// NewMockVendor creates a mock vendor server with a working token endpoint.
func NewMockVendor() *MockVendor {
	mock := &MockVendor{
		responses: make(map[string][]MockResponse),
		served:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenEndpointPath, mock.handleToken)
	mux.HandleFunc(AssetEndpointPath, mock.handleAsset)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL. Use it for both BaseURL and the token
// endpoint prefix.
func (m *MockVendor) URL() string {
	return m.server.URL
}

// TokenURL returns the mock's full token endpoint URL.
func (m *MockVendor) TokenURL() string {
	return m.server.URL + TokenEndpointPath
}

// Close shuts down the mock server.
func (m *MockVendor) Close() {
	m.server.Close()
}

// SetTokenHandler overrides the token endpoint (for failure scenarios).
func (m *MockVendor) SetTokenHandler(fn func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenFn = fn
}

// Script sets the response sequence for a service tag. Each asset request
// consumes one response; the final one repeats once the script runs out.
func (m *MockVendor) Script(serviceTag string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[serviceTag] = responses
	m.served[serviceTag] = 0
}

// GetTokenRequests returns the number of token exchanges performed.
func (m *MockVendor) GetTokenRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenRequests
}

// GetAssetRequests returns the number of asset lookups performed.
func (m *MockVendor) GetAssetRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.AssetRequests
}

func (m *MockVendor) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenRequests++
	custom := m.tokenFn
	n := m.TokenRequests
	m.mu.Unlock()

	if custom != nil {
		custom(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": fmt.Sprintf("mock-token-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (m *MockVendor) handleAsset(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("servicetags")

	m.mu.Lock()
	m.AssetRequests++
	m.LastAuthorization = r.Header.Get("Authorization")
	m.LastUserAgent = r.Header.Get("User-Agent")

	script, ok := m.responses[tag]
	var resp MockResponse
	if ok && len(script) > 0 {
		idx := m.served[tag]
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp = script[idx]
		m.served[tag]++
	}
	m.mu.Unlock()

	if !ok || len(script) == 0 {
		// Unscripted tags behave like unknown hardware.
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"service tag not found"}`)
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.Headers["Content-Type"] == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		fmt.Fprint(w, resp.Body)
	}
}

// AssetResponse builds a 200 response carrying one asset record with the
// given entitlements JSON fragment.
func AssetResponse(serviceTag, entitlementsJSON string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`[{"serviceTag":%q,"productLineDescription":"Latitude 7440","productFamily":"Latitude","systemDescription":"Latitude 7440 Laptop","shipDate":"2023-02-01T00:00:00Z","countryCode":"US","entitlements":%s}]`,
			serviceTag, entitlementsJSON),
	}
}

// UnauthorizedResponse builds a 401 response.
func UnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"invalid token"}`,
	}
}

// RateLimitResponse builds a server-declared 429 response.
func RateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"rate limit exceeded"}`,
	}
}

// EmptyResponse builds a 200 response with an empty record array.
func EmptyResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `[]`,
	}
}

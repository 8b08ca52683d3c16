package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/hwsync/dell-warranty-client/internal/testutil"
	"github.com/hwsync/dell-warranty-client/pkg/config"
	"github.com/hwsync/dell-warranty-client/pkg/warranty"
)

func newTestClient(t *testing.T, mock *testutil.MockVendor, maxRequests int) *Client {
	t.Helper()

	c, err := New(Config{
		API: config.Config{
			ClientID:             "test-id",
			ClientSecret:         "test-secret",
			BaseURL:              mock.URL(),
			TokenURL:             mock.TokenURL(),
			MaxRequestsPerWindow: maxRequests,
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew_ConfigurationError(t *testing.T) {
	_, err := New(Config{API: config.Config{ClientID: "only-id"}})
	if err == nil {
		t.Fatal("New() error = nil, want configuration error")
	}
	if KindOf(err) != KindConfiguration {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindConfiguration)
	}

	var missingErr *config.MissingParamsError
	if !errors.As(err, &missingErr) {
		t.Errorf("error does not unwrap to MissingParamsError: %v", err)
	}
}

func TestNormalizeServiceTag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid uppercase", input: "ABC1234", want: "ABC1234"},
		{name: "lowercase normalized", input: "abc1234", want: "ABC1234"},
		{name: "whitespace trimmed", input: "  ABC1234  ", want: "ABC1234"},
		{name: "too short", input: "ABC123", wantErr: true},
		{name: "too long", input: "ABC12345", wantErr: true},
		{name: "special characters", input: "ABC-123", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeServiceTag(tt.input)
			if tt.wantErr {
				if !IsInvalidIdentifier(err) {
					t.Errorf("NormalizeServiceTag(%q) error = %v, want invalid identifier", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeServiceTag(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeServiceTag(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetAssetInfo_InvalidTagMakesNoRequests(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()

	c := newTestClient(t, mock, 50)

	_, err := c.GetAssetInfo(context.Background(), "bogus")
	if !IsInvalidIdentifier(err) {
		t.Fatalf("error = %v, want invalid identifier", err)
	}
	if mock.GetTokenRequests() != 0 || mock.GetAssetRequests() != 0 {
		t.Errorf("requests made for invalid tag: token=%d asset=%d",
			mock.GetTokenRequests(), mock.GetAssetRequests())
	}
}

func TestGetAssetInfo_Success(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()

	mock.Script("ABC1234", testutil.AssetResponse("ABC1234",
		`[{"serviceLevelCode":"PROSUP","serviceLevelDescription":"ProSupport","endDate":"2030-01-01T00:00:00Z"}]`))

	c := newTestClient(t, mock, 50)

	record, err := c.GetAssetInfo(context.Background(), "abc1234")
	if err != nil {
		t.Fatalf("GetAssetInfo() error: %v", err)
	}

	if record.ServiceTag != "ABC1234" {
		t.Errorf("ServiceTag = %q, want ABC1234", record.ServiceTag)
	}
	if record.Model != "Latitude 7440" {
		t.Errorf("Model = %q, want Latitude 7440", record.Model)
	}
	if record.Warranty.Status != warranty.StatusActive {
		t.Errorf("Warranty.Status = %v, want %v", record.Warranty.Status, warranty.StatusActive)
	}
	if record.Warranty.ServiceLevelCode != "PROSUP" {
		t.Errorf("ServiceLevelCode = %q, want PROSUP", record.Warranty.ServiceLevelCode)
	}

	if !strings.HasPrefix(mock.LastAuthorization, "Bearer mock-token-") {
		t.Errorf("Authorization = %q, want bearer token", mock.LastAuthorization)
	}
	if mock.LastUserAgent != UserAgent {
		t.Errorf("User-Agent = %q, want %q", mock.LastUserAgent, UserAgent)
	}
}

func TestGetAssetInfo_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		response testutil.MockResponse
		wantKind Kind
	}{
		{
			name:     "404 maps to not found",
			response: testutil.MockResponse{StatusCode: http.StatusNotFound, Body: `{"error":"nope"}`},
			wantKind: KindNotFound,
		},
		{
			name:     "429 maps to server rate limit",
			response: testutil.RateLimitResponse(),
			wantKind: KindRateLimited,
		},
		{
			name:     "500 maps to upstream",
			response: testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: "boom"},
			wantKind: KindUpstream,
		},
		{
			name:     "empty array maps to not found",
			response: testutil.EmptyResponse(),
			wantKind: KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockVendor()
			defer mock.Close()
			mock.Script("ABC1234", tt.response)

			c := newTestClient(t, mock, 50)

			_, err := c.GetAssetInfo(context.Background(), "ABC1234")
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v (err: %v)", KindOf(err), tt.wantKind, err)
			}
		})
	}
}

func TestGetAssetInfo_ServerRateLimitOrigin(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.Script("ABC1234", testutil.RateLimitResponse())

	c := newTestClient(t, mock, 50)

	_, err := c.GetAssetInfo(context.Background(), "ABC1234")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Origin != OriginServer {
		t.Errorf("Origin = %v, want %v", apiErr.Origin, OriginServer)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
}

func TestGetAssetInfo_UpstreamErrorCarriesBody(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.Script("ABC1234", testutil.MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "gateway exploded",
	})

	c := newTestClient(t, mock, 50)

	_, err := c.GetAssetInfo(context.Background(), "ABC1234")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Body != "gateway exploded" {
		t.Errorf("Body = %q, want upstream body", apiErr.Body)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", apiErr.StatusCode)
	}
}

func TestGetAssetInfo_ReauthRetryOn401(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.Script("ABC1234",
		testutil.UnauthorizedResponse(),
		testutil.AssetResponse("ABC1234", `[{"serviceLevelCode":"NBD","endDate":"2030-01-01T00:00:00Z"}]`))

	c := newTestClient(t, mock, 50)

	record, err := c.GetAssetInfo(context.Background(), "ABC1234")
	if err != nil {
		t.Fatalf("GetAssetInfo() error: %v", err)
	}
	if record.ServiceTag != "ABC1234" {
		t.Errorf("ServiceTag = %q, want ABC1234", record.ServiceTag)
	}

	// The 401 forces a second token exchange and a second asset request.
	if got := mock.GetTokenRequests(); got != 2 {
		t.Errorf("token requests = %d, want 2", got)
	}
	if got := mock.GetAssetRequests(); got != 2 {
		t.Errorf("asset requests = %d, want 2", got)
	}
}

func TestGetAssetInfo_SecondUnauthorizedSurfaces(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.Script("ABC1234",
		testutil.UnauthorizedResponse(),
		testutil.UnauthorizedResponse())

	c := newTestClient(t, mock, 50)

	_, err := c.GetAssetInfo(context.Background(), "ABC1234")
	if !IsAuthentication(err) {
		t.Fatalf("error = %v, want authentication error", err)
	}

	// Exactly one retry: two asset requests, no unbounded loop.
	if got := mock.GetAssetRequests(); got != 2 {
		t.Errorf("asset requests = %d, want 2", got)
	}
}

func TestGetAssetInfo_ClientSideRateLimit(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.Script("ABC1234", testutil.AssetResponse("ABC1234", `[]`))

	c := newTestClient(t, mock, 1)
	ctx := context.Background()

	if _, err := c.GetAssetInfo(ctx, "ABC1234"); err != nil {
		t.Fatalf("first lookup error: %v", err)
	}

	_, err := c.GetAssetInfo(ctx, "ABC1234")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindRateLimited {
		t.Fatalf("error = %v, want client-side rate limit", err)
	}
	if apiErr.Origin != OriginClient {
		t.Errorf("Origin = %v, want %v", apiErr.Origin, OriginClient)
	}

	// Rejection happens before any network call.
	if got := mock.GetAssetRequests(); got != 1 {
		t.Errorf("asset requests = %d, want 1", got)
	}
}

func TestGetAssetInfo_AuthenticationFailure(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.SetTokenHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	})

	c := newTestClient(t, mock, 50)

	_, err := c.GetAssetInfo(context.Background(), "ABC1234")
	if !IsAuthentication(err) {
		t.Fatalf("error = %v, want authentication error", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401 from token endpoint", apiErr.StatusCode)
	}
	if apiErr.Body == "" {
		t.Error("Body empty, want token endpoint response body")
	}
}

func TestTestConnection(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()

	c := newTestClient(t, mock, 50)

	result := c.TestConnection(context.Background())
	if !result.Success {
		t.Errorf("Success = false: %s", result.Message)
	}
	if mock.GetAssetRequests() != 0 {
		t.Errorf("asset requests = %d, want 0 (authentication only)", mock.GetAssetRequests())
	}
}

func TestTestConnection_Failure(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.SetTokenHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c := newTestClient(t, mock, 50)

	result := c.TestConnection(context.Background())
	if result.Success {
		t.Error("Success = true, want false for rejected credentials")
	}
	if !strings.Contains(result.Message, "Connection failed") {
		t.Errorf("Message = %q, want connection failure text", result.Message)
	}
}

func TestStatus(t *testing.T) {
	mock := testutil.NewMockVendor()
	defer mock.Close()
	mock.Script("ABC1234", testutil.AssetResponse("ABC1234", `[]`))

	c := newTestClient(t, mock, 10)

	before := c.Status()
	if before.Authenticated {
		t.Error("Authenticated = true before any request")
	}
	if before.TokenExpiry != nil {
		t.Errorf("TokenExpiry = %v before any request, want nil", before.TokenExpiry)
	}
	if before.RateLimitRemaining != 10 || before.MaxRequestsPerWindow != 10 {
		t.Errorf("budget = %d/%d, want 10/10", before.RateLimitRemaining, before.MaxRequestsPerWindow)
	}

	if _, err := c.GetAssetInfo(context.Background(), "ABC1234"); err != nil {
		t.Fatalf("GetAssetInfo() error: %v", err)
	}

	after := c.Status()
	if !after.Authenticated {
		t.Error("Authenticated = false after successful lookup")
	}
	if after.TokenExpiry == nil {
		t.Error("TokenExpiry = nil after successful lookup")
	}
	if after.RateLimitRemaining != 9 {
		t.Errorf("RateLimitRemaining = %d, want 9", after.RateLimitRemaining)
	}
}

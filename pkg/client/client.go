// Package client implements the TechDirect vendor client: authenticated,
// rate-limited warranty lookups with typed errors and an optional Redis
// lookup cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hwsync/dell-warranty-client/pkg/cache"
	"github.com/hwsync/dell-warranty-client/pkg/config"
	"github.com/hwsync/dell-warranty-client/pkg/ratelimit"
	"github.com/hwsync/dell-warranty-client/pkg/token"
	"github.com/hwsync/dell-warranty-client/pkg/warranty"
)

// Prometheus metrics for vendor API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dellapi_requests_total",
		Help: "Total vendor API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dellapi_request_duration_seconds",
		Help:    "Vendor API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dellapi_errors_total",
		Help: "Total vendor API errors by kind",
	}, []string{"kind"})

	reauthRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_reauth_retries_total",
		Help: "Total one-shot retries after a resource-server 401",
	})
)

// UserAgent is the fixed client identification header sent on every
// outbound request.
const UserAgent = "Freshservice-Dell-Asset-Management/1.0"

// entitlementsEndpoint is the TechDirect asset entitlements resource.
const entitlementsEndpoint = "/asset-entitlements"

// Config holds the client configuration.
type Config struct {
	// API is the vendor credentials and endpoints. Required fields are
	// validated before any network activity.
	API config.Config

	// Redis enables the lookup cache when set. The client works without it.
	Redis *redis.Client

	// CacheTTL bounds cached vendor payloads (default cache.DefaultTTL).
	CacheTTL time.Duration

	// HTTPClient overrides the default client (for testing).
	HTTPClient *http.Client
}

// Client is the TechDirect vendor client. It owns the token cache and the
// rate-limit counter; construct one instance per configuration.
type Client struct {
	httpClient *http.Client
	cfg        config.Config
	tokens     *token.Manager
	limiter    *ratelimit.Limiter
	cache      *cache.Store
	logger     zerolog.Logger
}

// ClientStatus is the read-only introspection snapshot returned by Status.
type ClientStatus struct {
	Authenticated        bool       `json:"authenticated"`
	TokenExpiry          *time.Time `json:"tokenExpiry,omitempty"`
	RateLimitRemaining   int        `json:"rateLimitRemaining"`
	MaxRequestsPerWindow int        `json:"maxRequestsPerWindow"`
}

// ConnectionResult reports connectivity and credential health.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// New creates a vendor client. Missing required configuration fails here,
// before any network activity.
func New(cfg Config) (*Client, error) {
	api, err := config.Validate(cfg.API)
	if err != nil {
		return nil, &APIError{
			Kind:    KindConfiguration,
			Message: "invalid configuration",
			Err:     err,
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := log.With().Str("component", "dell-client").Logger()

	var store *cache.Store
	if cfg.Redis != nil {
		store = cache.NewStore(cfg.Redis, cfg.CacheTTL)
	}

	return &Client{
		httpClient: httpClient,
		cfg:        api,
		tokens: token.NewManager(token.Config{
			TokenURL:     api.TokenURL,
			ClientID:     api.ClientID,
			ClientSecret: api.ClientSecret,
			HTTPClient:   httpClient,
		}, logger),
		limiter: ratelimit.NewLimiter(api.MaxRequestsPerWindow, logger),
		cache:   store,
		logger:  logger,
	}, nil
}

// GetAssetInfo looks up warranty and asset information for one service tag.
// The identifier is validated before admission control; both happen before
// any I/O and are never retried.
func (c *Client) GetAssetInfo(ctx context.Context, identifier string) (*warranty.AssetRecord, error) {
	tag, err := NormalizeServiceTag(identifier)
	if err != nil {
		errorsTotal.WithLabelValues(string(KindInvalidIdentifier)).Inc()
		return nil, err
	}

	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, tag); err == nil {
			c.logger.Debug().Str("service_tag", tag).Msg("Lookup served from cache")
			record := warranty.BuildAssetRecord(*raw)
			return &record, nil
		}
	}

	if err := c.limiter.Admit(); err != nil {
		errorsTotal.WithLabelValues(string(KindRateLimited)).Inc()
		return nil, &APIError{
			Kind:    KindRateLimited,
			Origin:  OriginClient,
			Message: "rate limit exceeded, please wait before making more requests",
			Err:     err,
		}
	}

	raw, err := c.fetchAsset(ctx, tag)
	if err != nil {
		if kind := KindOf(err); kind != "" {
			errorsTotal.WithLabelValues(string(kind)).Inc()
		}
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, tag, *raw); err != nil {
			c.logger.Warn().Err(err).Str("service_tag", tag).Msg("Failed to cache lookup")
		}
	}

	record := warranty.BuildAssetRecord(*raw)
	return &record, nil
}

// fetchAsset performs the authenticated entitlements GET, including the
// one-shot re-authentication retry on 401.
func (c *Client) fetchAsset(ctx context.Context, tag string) (*warranty.RawAsset, error) {
	accessToken, err := c.acquireToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doEntitlementsRequest(ctx, tag, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The server's view of token validity may differ from the local
		// clock estimate. Refresh once and retry; a second 401 surfaces as
		// an authentication error.
		resp.Body.Close()
		c.tokens.Invalidate()
		reauthRetriesTotal.Inc()
		c.logger.Debug().Str("service_tag", tag).Msg("401 from resource server, retrying with fresh token")

		accessToken, err = c.acquireToken(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = c.doEntitlementsRequest(ctx, tag, accessToken)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, &APIError{
				Kind:       KindAuthentication,
				StatusCode: http.StatusUnauthorized,
				Message:    "authentication rejected after token refresh",
			}
		}
	}

	return c.parseAssetResponse(resp, tag)
}

func (c *Client) acquireToken(ctx context.Context) (string, error) {
	accessToken, err := c.tokens.Acquire(ctx)
	if err != nil {
		var exchErr *token.ExchangeError
		apiErr := &APIError{
			Kind:    KindAuthentication,
			Message: "authentication failed",
			Err:     err,
		}
		if errors.As(err, &exchErr) {
			apiErr.StatusCode = exchErr.StatusCode
			apiErr.Body = exchErr.Body
		}
		return "", apiErr
	}
	return accessToken, nil
}

func (c *Client) doEntitlementsRequest(ctx context.Context, tag, accessToken string) (*http.Response, error) {
	requestURL := fmt.Sprintf("%s%s?servicetags=%s", c.cfg.BaseURL, entitlementsEndpoint, url.QueryEscape(tag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: "create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(entitlementsEndpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues(entitlementsEndpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("service_tag", tag).Msg("Vendor request failed")
		return nil, &APIError{Kind: KindNetwork, Message: "request failed", Err: err}
	}

	requestsTotal.WithLabelValues(entitlementsEndpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return resp, nil
}

// parseAssetResponse maps vendor statuses onto the error taxonomy and
// extracts the first record of the response array.
func (c *Client) parseAssetResponse(resp *http.Response, tag string) (*warranty.RawAsset, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &APIError{
			Kind:       KindNotFound,
			StatusCode: resp.StatusCode,
			Message:    "service tag not found in Dell database",
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &APIError{
			Kind:       KindRateLimited,
			Origin:     OriginServer,
			StatusCode: resp.StatusCode,
			Message:    "rate limit exceeded, please try again later",
			Body:       string(body),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("service_tag", tag).
			Msg("Vendor request error")
		return nil, &APIError{
			Kind:       KindUpstream,
			StatusCode: resp.StatusCode,
			Message:    "API request failed",
			Body:       string(body),
		}
	}

	var records []warranty.RawAsset
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &APIError{
			Kind:       KindUpstream,
			StatusCode: resp.StatusCode,
			Message:    "failed to parse vendor response",
			Err:        err,
		}
	}
	if len(records) == 0 {
		return nil, &APIError{
			Kind:       KindNotFound,
			StatusCode: resp.StatusCode,
			Message:    "no data found for this service tag",
		}
	}

	return &records[0], nil
}

// TestConnection attempts authentication only, reporting connectivity and
// credential health without requiring a valid service tag. Failures are
// encoded in the result, never returned as an error.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	if _, err := c.tokens.Acquire(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Connection test failed")
		return ConnectionResult{
			Success: false,
			Message: fmt.Sprintf("Connection failed: %v", err),
		}
	}
	return ConnectionResult{
		Success: true,
		Message: "Successfully connected to Dell TechDirect API",
	}
}

// Status returns a read-only snapshot of authentication and rate-limit
// state. It has no side effects.
func (c *Client) Status() ClientStatus {
	status := ClientStatus{
		Authenticated:        c.tokens.Valid(),
		RateLimitRemaining:   c.limiter.Remaining(),
		MaxRequestsPerWindow: c.limiter.Max(),
	}
	if expiry := c.tokens.Expiry(); !expiry.IsZero() {
		status.TokenExpiry = &expiry
	}
	return status
}

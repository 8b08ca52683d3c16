// Package token manages the OAuth2 client-credentials token lifecycle for
// the TechDirect API: acquisition, caching, expiry, and invalidation.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	tokenExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dellapi_token_exchanges_total",
		Help: "Total OAuth2 token exchanges by outcome",
	}, []string{"outcome"})

	tokenInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_token_invalidations_total",
		Help: "Total forced token invalidations after resource-server 401s",
	})
)

// expiryMargin is subtracted from the vendor-declared lifetime so the client
// refreshes before the server-side expiry.
const expiryMargin = 60 * time.Second

// ExchangeError reports a failed token exchange with the vendor's HTTP
// status and response body attached for diagnosis.
type ExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed: status %d - %s", e.StatusCode, e.Body)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Config holds the credentials and endpoint for the token exchange.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	// HTTPClient overrides the default client (for testing).
	HTTPClient *http.Client
}

// Manager owns the cached access token. Concurrent Acquire calls share one
// in-flight exchange; a second exchange is never issued while the first is
// pending.
type Manager struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewManager creates a token manager.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "token-manager").Logger(),
	}
}

// tokenResponse mirrors the vendor's OAuth2 token endpoint JSON.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Acquire returns a valid access token, performing a client-credentials
// exchange if the cached token is missing or expired. Concurrent callers
// suspend on the same in-flight exchange and share its result.
func (m *Manager) Acquire(ctx context.Context) (string, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	result, err, _ := m.group.Do("exchange", func() (interface{}, error) {
		// A waiter that lost the race may find a fresh token already stored.
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		return m.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate discards the cached token regardless of its local expiry
// estimate. Used after a resource-server 401, since the server's view of
// validity may differ from the client clock.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	tokenInvalidationsTotal.Inc()
	m.logger.Debug().Msg("Cached token invalidated")
}

// Valid reports whether a non-expired token is cached.
func (m *Manager) Valid() bool {
	_, ok := m.cached()
	return ok
}

// Expiry returns the local expiry estimate of the cached token, or the zero
// time when no token is held.
func (m *Manager) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

func (m *Manager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && time.Now().Before(m.expiresAt) {
		return m.token, true
	}
	return "", false
}

// exchange performs the OAuth2 client-credentials POST and stores the
// resulting token with the safety margin applied.
func (m *Manager) exchange(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		tokenExchangesTotal.WithLabelValues("error").Inc()
		return "", &ExchangeError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		tokenExchangesTotal.WithLabelValues("network_error").Inc()
		m.logger.Error().Err(err).Msg("Token request failed")
		return "", &ExchangeError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tokenExchangesTotal.WithLabelValues("error").Inc()
		return "", &ExchangeError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tokenExchangesTotal.WithLabelValues("rejected").Inc()
		m.logger.Error().
			Int("status", resp.StatusCode).
			Msg("Token exchange rejected")
		return "", &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		tokenExchangesTotal.WithLabelValues("error").Inc()
		return "", &ExchangeError{Err: fmt.Errorf("parse token response: %w", err)}
	}
	if tr.AccessToken == "" {
		tokenExchangesTotal.WithLabelValues("error").Inc()
		return "", &ExchangeError{StatusCode: resp.StatusCode, Body: "response missing access_token"}
	}

	expiresAt := time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)

	m.mu.Lock()
	m.token = tr.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	tokenExchangesTotal.WithLabelValues("success").Inc()
	m.logger.Debug().
		Int("expires_in", tr.ExpiresIn).
		Time("expires_at", expiresAt).
		Msg("Token acquired")

	return tr.AccessToken, nil
}

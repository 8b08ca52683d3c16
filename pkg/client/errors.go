package client

import (
	"errors"
	"fmt"
)

// Kind classifies client errors for handling and reporting.
type Kind string

const (
	// KindInvalidIdentifier means the service tag failed shape validation.
	// No network call was made.
	KindInvalidIdentifier Kind = "invalid_identifier"

	// KindConfiguration means required credentials or endpoints are missing.
	KindConfiguration Kind = "configuration"

	// KindAuthentication means the token exchange failed, or a retried 401
	// failed again.
	KindAuthentication Kind = "authentication"

	// KindRateLimited means the request budget was exhausted, either
	// client-side or by a server-declared 429. Origin tells them apart.
	KindRateLimited Kind = "rate_limited"

	// KindNotFound means the vendor has no record for the identifier.
	KindNotFound Kind = "not_found"

	// KindUpstream means any other non-2xx vendor response.
	KindUpstream Kind = "upstream"

	// KindNetwork means the request never reached the server.
	KindNetwork Kind = "network"
)

// RateLimitOrigin distinguishes client-side budget rejections from
// server-declared 429s.
type RateLimitOrigin string

const (
	OriginClient RateLimitOrigin = "client"
	OriginServer RateLimitOrigin = "server"
)

// APIError is the typed error for all client failures. StatusCode and Body
// are populated for vendor-originated errors; Origin only for rate limits.
type APIError struct {
	Kind       Kind
	StatusCode int
	Origin     RateLimitOrigin
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind, or "" for non-client errors.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsInvalidIdentifier reports whether err is a service tag validation failure.
func IsInvalidIdentifier(err error) bool { return KindOf(err) == KindInvalidIdentifier }

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool { return KindOf(err) == KindAuthentication }

// IsRateLimited reports whether err is a rate limit rejection of either origin.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsNotFound reports whether err means the vendor has no record.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

package client

import (
	"regexp"
	"strings"
)

// serviceTagPattern is Dell's service tag shape: exactly 7 alphanumerics.
var serviceTagPattern = regexp.MustCompile(`^[A-Z0-9]{7}$`)

// NormalizeServiceTag trims and uppercases an identifier and validates its
// shape. Validation happens before any network activity.
func NormalizeServiceTag(identifier string) (string, error) {
	tag := strings.ToUpper(strings.TrimSpace(identifier))
	if !serviceTagPattern.MatchString(tag) {
		return "", &APIError{
			Kind:    KindInvalidIdentifier,
			Message: "service tag must be 7 alphanumeric characters",
		}
	}
	return tag, nil
}

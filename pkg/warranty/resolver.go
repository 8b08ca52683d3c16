package warranty

import (
	"math"
	"strings"
	"time"
)

// Status classifies the selected entitlement's coverage at resolution time.
type Status string

const (
	// StatusActive means more than 30 days of coverage remain.
	StatusActive Status = "active"

	// StatusExpiring means coverage ends within 30 days.
	StatusExpiring Status = "expiring"

	// StatusExpired means the end date has passed.
	StatusExpired Status = "expired"

	// StatusUnknown means no end date is available.
	StatusUnknown Status = "unknown"
)

// ExpiringThresholdDays is the remaining-days boundary between active and
// expiring coverage.
const ExpiringThresholdDays = 30

// Summary is the normalized warranty record derived from an entitlement
// list. It is recomputed on every resolution; a stored status goes stale as
// real time passes, so none is ever cached.
type Summary struct {
	Status           Status     `json:"status"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	ServiceLevel     string     `json:"serviceLevel"`
	ServiceLevelCode string     `json:"serviceLevelCode"`
	DaysRemaining    *int       `json:"daysRemaining,omitempty"`
}

// phoneSupportCode identifies phone-support-only entitlements, which never
// count as real hardware coverage.
const phoneSupportCode = "PHONESUPP"

// digitalDeliveryMarker excludes software-delivery entitlements by
// description match.
const digitalDeliveryMarker = "digital delivery"

// priorityCodes is the service-level selection order: ProSupport variants
// first, then next-business-day, premium, complete-care, parts-only.
// Matching is a case-insensitive substring scan, first hit wins.
var priorityCodes = []string{
	"PROSUPIT", "PROSUP", "PROPLUS", "PRO",
	"NBD", "ND",
	"PY", "PQ",
	"CC",
	"POW",
}

// Resolve selects the primary entitlement and derives a Summary, evaluated
// against the current clock.
func Resolve(entitlements []Entitlement) Summary {
	return ResolveAt(entitlements, time.Now())
}

// ResolveAt is Resolve with an explicit evaluation instant.
func ResolveAt(entitlements []Entitlement, now time.Time) Summary {
	primary := primaryEntitlement(entitlements, now)
	return buildSummary(primary, now)
}

// primaryEntitlement picks the single authoritative entitlement:
// priority-coded active coverage, else the longest-remaining active one,
// else the most recently expired one, else the first raw entitlement.
func primaryEntitlement(entitlements []Entitlement, now time.Time) *Entitlement {
	if len(entitlements) == 0 {
		return nil
	}

	active := filterEntitlements(entitlements, now, true)

	for _, code := range priorityCodes {
		for i := range active {
			if strings.Contains(strings.ToUpper(active[i].ServiceLevelCode), code) {
				return &active[i]
			}
		}
	}

	// Lists arrive sorted latest-end-date-first, so the first active
	// entitlement is the longest-remaining one and the first expired
	// entitlement is the most recently lapsed one.
	if len(active) > 0 {
		return &active[0]
	}

	expired := filterEntitlements(entitlements, now, false)
	if len(expired) > 0 {
		return &expired[0]
	}

	return &entitlements[0]
}

// filterEntitlements returns real-coverage candidates. With requireFuture it
// keeps only entitlements still in force; otherwise any dated entitlement
// qualifies. Phone-support-only codes and digital-delivery entitlements are
// excluded either way.
func filterEntitlements(entitlements []Entitlement, now time.Time, requireFuture bool) []Entitlement {
	var out []Entitlement
	for _, e := range entitlements {
		if e.EndDate == nil || e.ServiceLevelCode == "" {
			continue
		}
		if requireFuture && !e.EndDate.After(now) {
			continue
		}
		if e.ServiceLevelCode == phoneSupportCode {
			continue
		}
		if strings.Contains(strings.ToLower(e.ServiceLevelDescription), digitalDeliveryMarker) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func buildSummary(e *Entitlement, now time.Time) Summary {
	if e == nil {
		return Summary{
			Status:       StatusUnknown,
			ServiceLevel: "Unknown",
		}
	}

	s := Summary{
		Status:           statusAt(e.EndDate, now),
		StartDate:        e.StartDate,
		EndDate:          e.EndDate,
		ServiceLevel:     e.ServiceLevelDescription,
		ServiceLevelCode: e.ServiceLevelCode,
	}
	if s.ServiceLevel == "" {
		s.ServiceLevel = "Unknown"
	}
	if e.EndDate != nil {
		days := DaysRemaining(*e.EndDate, now)
		s.DaysRemaining = &days
	}
	return s
}

// DaysRemaining is the whole-day count until end, rounded up. Negative once
// the end date has passed.
func DaysRemaining(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}

// statusAt derives the coverage status from an end date at a fixed instant.
func statusAt(end *time.Time, now time.Time) Status {
	if end == nil {
		return StatusUnknown
	}
	days := DaysRemaining(*end, now)
	switch {
	case days < 0:
		return StatusExpired
	case days <= ExpiringThresholdDays:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// Package warranty normalizes Dell TechDirect entitlement data into a single
// authoritative warranty record with a derived status.
package warranty

import (
	"sort"
	"time"
)

// Entitlement is one support/warranty coverage period as reported by the
// vendor. Dates are nil when the vendor omits them; absence means "unknown",
// not "infinite".
type Entitlement struct {
	ItemNumber              string     `json:"itemNumber"`
	StartDate               *time.Time `json:"startDate"`
	EndDate                 *time.Time `json:"endDate"`
	EntitlementType         string     `json:"entitlementType"`
	ServiceLevelCode        string     `json:"serviceLevelCode"`
	ServiceLevelDescription string     `json:"serviceLevelDescription"`
	ServiceLevelGroup       *int       `json:"serviceLevelGroup,omitempty"`
}

// RawEntitlement mirrors the vendor's JSON entitlement shape, with dates as
// strings in whatever format TechDirect emits.
type RawEntitlement struct {
	ItemNumber              string `json:"itemNumber"`
	StartDate               string `json:"startDate"`
	EndDate                 string `json:"endDate"`
	EntitlementType         string `json:"entitlementType"`
	ServiceLevelCode        string `json:"serviceLevelCode"`
	ServiceLevelDescription string `json:"serviceLevelDescription"`
	ServiceLevelGroup       *int   `json:"serviceLevelGroup"`
}

// dateFormats are tried in order when parsing vendor timestamps. TechDirect
// responses mix RFC3339 with zone-less and date-only forms.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses a vendor date string. Returns nil for empty or
// unparseable input.
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseEntitlements converts raw vendor entitlements and sorts them latest
// end date first. Entitlements without an end date sort last.
func ParseEntitlements(raw []RawEntitlement) []Entitlement {
	parsed := make([]Entitlement, 0, len(raw))
	for _, r := range raw {
		e := Entitlement{
			ItemNumber:              r.ItemNumber,
			StartDate:               ParseDate(r.StartDate),
			EndDate:                 ParseDate(r.EndDate),
			EntitlementType:         r.EntitlementType,
			ServiceLevelCode:        r.ServiceLevelCode,
			ServiceLevelDescription: r.ServiceLevelDescription,
			ServiceLevelGroup:       r.ServiceLevelGroup,
		}
		if e.EntitlementType == "" {
			e.EntitlementType = "Unknown"
		}
		parsed = append(parsed, e)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		a, b := parsed[i].EndDate, parsed[j].EndDate
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})

	return parsed
}

package warranty

import (
	"testing"
	"time"
)

// fixedNow keeps status derivation deterministic across the test run.
var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time {
	return &t
}

func daysFromNow(days int) *time.Time {
	d := fixedNow.AddDate(0, 0, days)
	return &d
}

func TestStatusAt(t *testing.T) {
	tests := []struct {
		name     string
		end      *time.Time
		expected Status
	}{
		{
			name:     "no end date",
			end:      nil,
			expected: StatusUnknown,
		},
		{
			name:     "well in the future",
			end:      daysFromNow(400),
			expected: StatusActive,
		},
		{
			name:     "just past the expiring threshold",
			end:      daysFromNow(31),
			expected: StatusActive,
		},
		{
			name:     "at the expiring threshold",
			end:      daysFromNow(30),
			expected: StatusExpiring,
		},
		{
			name:     "ten days left",
			end:      daysFromNow(10),
			expected: StatusExpiring,
		},
		{
			name:     "ends today",
			end:      datePtr(fixedNow),
			expected: StatusExpiring,
		},
		{
			name:     "already expired",
			end:      daysFromNow(-5),
			expected: StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statusAt(tt.end, fixedNow)
			if got != tt.expected {
				t.Errorf("statusAt() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	tests := []struct {
		name     string
		end      time.Time
		expected int
	}{
		{
			name:     "exactly ten days",
			end:      fixedNow.AddDate(0, 0, 10),
			expected: 10,
		},
		{
			name:     "partial day rounds up",
			end:      fixedNow.Add(36 * time.Hour),
			expected: 2,
		},
		{
			name:     "same instant",
			end:      fixedNow,
			expected: 0,
		},
		{
			name:     "in the past",
			end:      fixedNow.AddDate(0, 0, -3),
			expected: -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DaysRemaining(tt.end, fixedNow)
			if got != tt.expected {
				t.Errorf("DaysRemaining() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestResolveAt_PrioritySelection(t *testing.T) {
	// ProSupport wins over a longer-running next-business-day entitlement.
	entitlements := ParseEntitlements([]RawEntitlement{
		{ServiceLevelCode: "NBD", ServiceLevelDescription: "Next Business Day", EndDate: daysFromNow(400).Format(time.RFC3339)},
		{ServiceLevelCode: "PROSUP", ServiceLevelDescription: "ProSupport", EndDate: daysFromNow(10).Format(time.RFC3339)},
	})

	summary := ResolveAt(entitlements, fixedNow)

	if summary.ServiceLevelCode != "PROSUP" {
		t.Errorf("ServiceLevelCode = %q, want PROSUP", summary.ServiceLevelCode)
	}
	if summary.Status != StatusExpiring {
		t.Errorf("Status = %v, want %v", summary.Status, StatusExpiring)
	}
	if summary.DaysRemaining == nil || *summary.DaysRemaining != 10 {
		t.Errorf("DaysRemaining = %v, want 10", summary.DaysRemaining)
	}
}

func TestResolveAt_PhoneSupportFallback(t *testing.T) {
	// A lone phone-support entitlement fails both the active and expired
	// filters but still surfaces through the raw fallback.
	entitlements := ParseEntitlements([]RawEntitlement{
		{ServiceLevelCode: "PHONESUPP", ServiceLevelDescription: "Phone Support", EndDate: daysFromNow(500).Format(time.RFC3339)},
	})

	summary := ResolveAt(entitlements, fixedNow)

	if summary.ServiceLevelCode != "PHONESUPP" {
		t.Errorf("ServiceLevelCode = %q, want PHONESUPP", summary.ServiceLevelCode)
	}
	if summary.Status != StatusActive {
		t.Errorf("Status = %v, want %v", summary.Status, StatusActive)
	}
}

func TestResolveAt_DigitalDeliveryExcluded(t *testing.T) {
	entitlements := ParseEntitlements([]RawEntitlement{
		{ServiceLevelCode: "DELL-DIGITAL", ServiceLevelDescription: "Digital Delivery Service", EndDate: daysFromNow(300).Format(time.RFC3339)},
		{ServiceLevelCode: "NBD", ServiceLevelDescription: "Next Business Day", EndDate: daysFromNow(90).Format(time.RFC3339)},
	})

	summary := ResolveAt(entitlements, fixedNow)

	if summary.ServiceLevelCode != "NBD" {
		t.Errorf("ServiceLevelCode = %q, want NBD", summary.ServiceLevelCode)
	}
}

func TestResolveAt_ExpiredFallback(t *testing.T) {
	// No active coverage: the most recently expired entitlement is chosen.
	entitlements := ParseEntitlements([]RawEntitlement{
		{ServiceLevelCode: "NBD", EndDate: daysFromNow(-100).Format(time.RFC3339)},
		{ServiceLevelCode: "POW", EndDate: daysFromNow(-10).Format(time.RFC3339)},
	})

	summary := ResolveAt(entitlements, fixedNow)

	if summary.ServiceLevelCode != "POW" {
		t.Errorf("ServiceLevelCode = %q, want POW (most recently expired)", summary.ServiceLevelCode)
	}
	if summary.Status != StatusExpired {
		t.Errorf("Status = %v, want %v", summary.Status, StatusExpired)
	}
}

func TestResolveAt_NoPriorityMatchPicksLongestActive(t *testing.T) {
	entitlements := ParseEntitlements([]RawEntitlement{
		{ServiceLevelCode: "XYZ", EndDate: daysFromNow(60).Format(time.RFC3339)},
		{ServiceLevelCode: "ABC", EndDate: daysFromNow(200).Format(time.RFC3339)},
	})

	summary := ResolveAt(entitlements, fixedNow)

	// Sorted latest-end-date-first, the first active entitlement has the
	// longest remaining coverage.
	if summary.ServiceLevelCode != "ABC" {
		t.Errorf("ServiceLevelCode = %q, want ABC", summary.ServiceLevelCode)
	}
}

func TestResolveAt_EmptyList(t *testing.T) {
	summary := ResolveAt(nil, fixedNow)

	if summary.Status != StatusUnknown {
		t.Errorf("Status = %v, want %v", summary.Status, StatusUnknown)
	}
	if summary.ServiceLevel != "Unknown" {
		t.Errorf("ServiceLevel = %q, want Unknown", summary.ServiceLevel)
	}
	if summary.DaysRemaining != nil {
		t.Errorf("DaysRemaining = %v, want nil", *summary.DaysRemaining)
	}
}

func TestResolveAt_Idempotent(t *testing.T) {
	entitlements := ParseEntitlements([]RawEntitlement{
		{ServiceLevelCode: "PROSUP", ServiceLevelDescription: "ProSupport", EndDate: daysFromNow(45).Format(time.RFC3339)},
		{ServiceLevelCode: "NBD", EndDate: daysFromNow(-20).Format(time.RFC3339)},
	})

	first := ResolveAt(entitlements, fixedNow)
	second := ResolveAt(entitlements, fixedNow)

	if first.Status != second.Status || first.ServiceLevelCode != second.ServiceLevelCode {
		t.Errorf("resolution not idempotent: %+v vs %+v", first, second)
	}
	if *first.DaysRemaining != *second.DaysRemaining {
		t.Errorf("DaysRemaining differs: %d vs %d", *first.DaysRemaining, *second.DaysRemaining)
	}
}

func TestResolveAt_StatusConsistentWithDaysRemaining(t *testing.T) {
	for _, days := range []int{-100, -1, 0, 1, 29, 30, 31, 365} {
		entitlements := ParseEntitlements([]RawEntitlement{
			{ServiceLevelCode: "NBD", EndDate: daysFromNow(days).Format(time.RFC3339)},
		})

		summary := ResolveAt(entitlements, fixedNow)
		if summary.DaysRemaining == nil {
			t.Fatalf("days=%d: DaysRemaining is nil", days)
		}

		got := *summary.DaysRemaining
		var want Status
		switch {
		case got < 0:
			want = StatusExpired
		case got <= ExpiringThresholdDays:
			want = StatusExpiring
		default:
			want = StatusActive
		}
		if summary.Status != want {
			t.Errorf("days=%d: Status = %v, want %v", days, summary.Status, want)
		}
	}
}

package warranty

import "time"

// AssetRecord is one normalized asset with its warranty coverage. Records
// are built per lookup, immutable after construction, and owned by the
// caller.
type AssetRecord struct {
	ServiceTag        string        `json:"serviceTag"`
	Model             string        `json:"model"`
	ProductFamily     string        `json:"productFamily"`
	SystemDescription string        `json:"systemDescription"`
	ShipDate          *time.Time    `json:"shipDate,omitempty"`
	CountryCode       string        `json:"countryCode"`
	Duplicated        bool          `json:"duplicated"`
	Invalid           bool          `json:"invalid"`
	Entitlements      []Entitlement `json:"entitlements"`
	Warranty          Summary       `json:"warranty"`
}

// RawAsset mirrors one record of the TechDirect asset-entitlements response.
type RawAsset struct {
	ServiceTag             string           `json:"serviceTag"`
	ProductLineDescription string           `json:"productLineDescription"`
	ProductFamily          string           `json:"productFamily"`
	SystemDescription      string           `json:"systemDescription"`
	ShipDate               string           `json:"shipDate"`
	CountryCode            string           `json:"countryCode"`
	Duplicated             bool             `json:"duplicated"`
	Invalid                bool             `json:"invalid"`
	Entitlements           []RawEntitlement `json:"entitlements"`
}

// BuildAssetRecord normalizes one raw vendor record: entitlements parsed and
// sorted, warranty resolved against the current clock, empty display fields
// replaced with "Unknown".
func BuildAssetRecord(raw RawAsset) AssetRecord {
	return buildAssetRecordAt(raw, time.Now())
}

func buildAssetRecordAt(raw RawAsset, now time.Time) AssetRecord {
	entitlements := ParseEntitlements(raw.Entitlements)

	model := raw.ProductLineDescription
	if model == "" {
		model = raw.SystemDescription
	}

	return AssetRecord{
		ServiceTag:        orUnknown(raw.ServiceTag),
		Model:             orUnknown(model),
		ProductFamily:     orUnknown(raw.ProductFamily),
		SystemDescription: orUnknown(raw.SystemDescription),
		ShipDate:          ParseDate(raw.ShipDate),
		CountryCode:       orUnknown(raw.CountryCode),
		Duplicated:        raw.Duplicated,
		Invalid:           raw.Invalid,
		Entitlements:      entitlements,
		Warranty:          ResolveAt(entitlements, now),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// Package portal discovers contracts on the transparency portal: it walks a
// multi-level, dynamically rendered hierarchy (company, organ, unit, object)
// and enumerates every processo link per company.
//
// DOM-specific brittleness lives exclusively in the Adapter implementation;
// the navigator state machine and row collector depend only on the Adapter's
// semantic operations.
package portal

import "time"

// CompanyRecord identifies one company listed on the portal. Immutable once
// read.
type CompanyRecord struct {
	// CompanyID is the tax identifier, unique across the listing.
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

// NavigationPath is the ordered hierarchy selection that led to a set of
// processo links. Links collected under one path belong to exactly one
// company; paths across different organs of the same company are never
// merged.
type NavigationPath struct {
	Organ  string `json:"organ"`
	Unit   string `json:"unit"`
	Object string `json:"object"`
}

// ProcessoLink is one discovered contract reference.
type ProcessoLink struct {
	Processo     string         `json:"processo"`
	URL          string         `json:"url"`
	CompanyID    string         `json:"company_id"`
	CompanyName  string         `json:"company_name"`
	Path         NavigationPath `json:"path"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// State is the navigator's position in the portal hierarchy.
type State string

const (
	StateInit            State = "INIT"
	StateFiltered        State = "FILTERED"
	StateCompanySelected State = "COMPANY_SELECTED"
	StateOrganSelected   State = "ORGAN_SELECTED"
	StateUnitSelected    State = "UNIT_SELECTED"
	StateLeafCollected   State = "LEAF_COLLECTED"
)

// Level names one tier of the portal hierarchy below the company row.
type Level int

const (
	LevelOrgan Level = iota
	LevelUnit
	LevelObject
)

func (l Level) String() string {
	switch l {
	case LevelOrgan:
		return "organ"
	case LevelUnit:
		return "unit"
	case LevelObject:
		return "object"
	default:
		return "unknown"
	}
}

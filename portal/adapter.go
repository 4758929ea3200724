package portal

import (
	"context"
	"errors"
)

// ErrNavigationTimeout is returned when the portal never stabilizes within
// the bounded number of passes or the interaction deadline. The caller may
// retry once from a hard reset before surfacing it.
var ErrNavigationTimeout = errors.New("portal: navigation timed out")

// Adapter exposes the portal as semantic operations. Implementations own
// every selector and rendering quirk; missing nodes are reported as empty
// slices, not errors, so the navigator treats them as empty branches.
type Adapter interface {
	// Open navigates to the contract listing filtered to the configured year.
	Open(ctx context.Context) error

	// ScrollCompanies performs one scroll-to-bottom pass over the virtualized
	// company table so further rows materialize.
	ScrollCompanies(ctx context.Context) error

	// VisibleCompanies reads the currently materialized company rows.
	VisibleCompanies(ctx context.Context) ([]CompanyRecord, error)

	// SelectCompany enters a company's hierarchy.
	SelectCompany(ctx context.Context, c CompanyRecord) error

	// ListNodes returns the selectable node names at a hierarchy level.
	ListNodes(ctx context.Context, level Level) ([]string, error)

	// SelectNode drills into a named node at a hierarchy level.
	SelectNode(ctx context.Context, level Level, name string) error

	// CollectLinks reads the processo links at the current leaf.
	CollectLinks(ctx context.Context) ([]ProcessoLink, error)

	// Reset returns to the filtered company listing, discarding all
	// hierarchy selection state.
	Reset(ctx context.Context) error

	// HardReset navigates away from the portal and back, recovering from a
	// listing that never stabilizes.
	HardReset(ctx context.Context) error
}

package portal

import (
	"context"
	"fmt"
	"log/slog"
)

// RowCollector enumerates every company row from the portal's virtualized
// table. Only visible rows exist in the rendered tree, so a single read pass
// is insufficient: the collector scrolls, reads, deduplicates by company ID
// and repeats until two consecutive passes yield no new IDs. One corrective
// full pass always follows convergence, since the first scroll cycle has been
// observed to silently drop rows.
type RowCollector struct {
	adapter   Adapter
	maxPasses int
	logger    *slog.Logger
}

// NewRowCollector creates a collector bounded to maxPasses scroll cycles.
func NewRowCollector(adapter Adapter, maxPasses int, logger *slog.Logger) *RowCollector {
	if maxPasses <= 0 {
		maxPasses = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RowCollector{adapter: adapter, maxPasses: maxPasses, logger: logger}
}

// HardReset navigates away from the portal and back, recovering a listing
// that never stabilizes. Callers retry Collect once after it.
func (rc *RowCollector) HardReset(ctx context.Context) error {
	return rc.adapter.HardReset(ctx)
}

// Collect returns all company rows in first-seen order. If the table never
// stabilizes within the pass bound it returns ErrNavigationTimeout; the
// caller may retry the whole fetch once from a hard reset.
func (rc *RowCollector) Collect(ctx context.Context) ([]CompanyRecord, error) {
	if err := rc.adapter.Open(ctx); err != nil {
		return nil, fmt.Errorf("portal: open listing: %w", err)
	}

	seen := make(map[string]bool)
	var companies []CompanyRecord
	stablePasses := 0

	for pass := 1; ; pass++ {
		if pass > rc.maxPasses {
			return nil, fmt.Errorf("%w: table did not stabilize after %d passes",
				ErrNavigationTimeout, rc.maxPasses)
		}

		added, err := rc.pass(ctx, seen, &companies)
		if err != nil {
			return nil, err
		}
		rc.logger.Debug("portal: scroll pass", "pass", pass, "new_rows", added, "total", len(companies))

		if added == 0 {
			stablePasses++
		} else {
			stablePasses = 0
		}
		if stablePasses >= 2 {
			break
		}
	}

	// Corrective pass: mandatory even after convergence.
	added, err := rc.pass(ctx, seen, &companies)
	if err != nil {
		return nil, err
	}
	if added > 0 {
		rc.logger.Warn("portal: corrective pass recovered dropped rows", "recovered", added)
	}

	rc.logger.Info("portal: company enumeration complete", "companies", len(companies))
	return companies, nil
}

func (rc *RowCollector) pass(ctx context.Context, seen map[string]bool, out *[]CompanyRecord) (int, error) {
	if err := rc.adapter.ScrollCompanies(ctx); err != nil {
		return 0, fmt.Errorf("portal: scroll pass: %w", err)
	}
	rows, err := rc.adapter.VisibleCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("portal: read rows: %w", err)
	}
	added := 0
	for _, r := range rows {
		if r.CompanyID == "" || seen[r.CompanyID] {
			continue
		}
		seen[r.CompanyID] = true
		*out = append(*out, r)
		added++
	}
	return added, nil
}

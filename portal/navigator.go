package portal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Navigator drives the hierarchical traversal for one company and yields
// every reachable processo link.
//
// Discovery branches independently per organ: every branch re-enters the
// hierarchy from COMPANY_SELECTED and never reuses UI selection state left by
// a sibling branch. (The portal retains tree selections across clicks, which
// historically caused links from one organ to be attributed to another; the
// full re-walk makes cross-contamination structurally impossible.)
type Navigator struct {
	adapter       Adapter
	branchTimeout time.Duration
	logger        *slog.Logger

	state State
}

// NewNavigator creates a Navigator. branchTimeout bounds the traversal of a
// single organ branch.
func NewNavigator(adapter Adapter, branchTimeout time.Duration, logger *slog.Logger) *Navigator {
	if branchTimeout <= 0 {
		branchTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{adapter: adapter, branchTimeout: branchTimeout, logger: logger, state: StateInit}
}

// State returns the navigator's current position, for failure logging.
func (n *Navigator) State() State { return n.state }

// DiscoverCompany walks every organ/unit/object branch under a company and
// returns all processo links found. A branch that times out is logged and
// skipped; it never aborts sibling branches. Partial coverage is reported as
// a shorter link list, not an error.
func (n *Navigator) DiscoverCompany(ctx context.Context, company CompanyRecord) ([]ProcessoLink, error) {
	if err := n.enterCompany(ctx, company); err != nil {
		return nil, err
	}

	organs, err := n.adapter.ListNodes(ctx, LevelOrgan)
	if err != nil {
		return nil, fmt.Errorf("portal: list organs for %s: %w", company.CompanyID, err)
	}
	n.logger.Info("portal: discovery start",
		"company", company.CompanyID, "organs", len(organs))

	var links []ProcessoLink
	for _, organ := range organs {
		branchCtx, cancel := context.WithTimeout(ctx, n.branchTimeout)
		branchLinks, err := n.discoverOrgan(branchCtx, company, organ)
		cancel()
		if err != nil {
			n.logger.Warn("portal: organ branch skipped",
				"company", company.CompanyID, "organ", organ,
				"state", n.state, "error", err)
			continue
		}
		links = append(links, branchLinks...)
	}

	n.reset(ctx)
	n.logger.Info("portal: discovery complete",
		"company", company.CompanyID, "links", len(links))
	return links, nil
}

// discoverOrgan traverses one organ branch. It always starts from a fresh
// COMPANY_SELECTED state.
func (n *Navigator) discoverOrgan(ctx context.Context, company CompanyRecord, organ string) ([]ProcessoLink, error) {
	var links []ProcessoLink

	if err := n.walk(ctx, company, organ, "", ""); err != nil {
		return nil, err
	}
	units, err := n.adapter.ListNodes(ctx, LevelUnit)
	if err != nil {
		return nil, fmt.Errorf("portal: list units under %s: %w", organ, err)
	}

	for _, unit := range units {
		if err := n.walk(ctx, company, organ, unit, ""); err != nil {
			return nil, err
		}
		objects, err := n.adapter.ListNodes(ctx, LevelObject)
		if err != nil {
			return nil, fmt.Errorf("portal: list objects under %s/%s: %w", organ, unit, err)
		}

		for _, object := range objects {
			if err := n.walk(ctx, company, organ, unit, object); err != nil {
				return nil, err
			}
			leaf, err := n.adapter.CollectLinks(ctx)
			if err != nil {
				return nil, fmt.Errorf("portal: collect links at %s/%s/%s: %w", organ, unit, object, err)
			}
			n.state = StateLeafCollected
			path := NavigationPath{Organ: organ, Unit: unit, Object: object}
			for _, l := range leaf {
				l.CompanyID = company.CompanyID
				l.CompanyName = company.Name
				l.Path = path
				l.DiscoveredAt = time.Now().UTC()
				links = append(links, l)
			}
		}
	}

	return links, nil
}

// walk re-derives a hierarchy position from scratch: reset, select company,
// then select each given node in order. Empty segments stop the descent.
func (n *Navigator) walk(ctx context.Context, company CompanyRecord, organ, unit, object string) error {
	if err := n.enterCompany(ctx, company); err != nil {
		return err
	}
	steps := []struct {
		level Level
		name  string
		state State
	}{
		{LevelOrgan, organ, StateOrganSelected},
		{LevelUnit, unit, StateUnitSelected},
		{LevelObject, object, StateUnitSelected},
	}
	for _, step := range steps {
		if step.name == "" {
			return nil
		}
		if err := n.adapter.SelectNode(ctx, step.level, step.name); err != nil {
			return fmt.Errorf("portal: select %s %q: %w", step.level, step.name, err)
		}
		n.state = step.state
	}
	return nil
}

func (n *Navigator) enterCompany(ctx context.Context, company CompanyRecord) error {
	n.reset(ctx)
	n.state = StateFiltered
	if err := n.adapter.SelectCompany(ctx, company); err != nil {
		return fmt.Errorf("portal: select company %s: %w", company.CompanyID, err)
	}
	n.state = StateCompanySelected
	return nil
}

// reset is the explicit RESET transition, available from any state.
func (n *Navigator) reset(ctx context.Context) {
	if err := n.adapter.Reset(ctx); err != nil {
		n.logger.Warn("portal: reset failed", "state", n.state, "error", err)
	}
	n.state = StateInit
}

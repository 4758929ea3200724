// Package pipeline runs the audit batch: discover companies and their
// processo links on the contracts portal, locate each contract's publication
// on the gazette, evaluate conformity and persist one verdict per processo.
//
// The batch is sequential by design: the shared browser session and the
// gazette's one-download-at-a-time discipline leave nothing to parallelize
// safely. Cancellation is honored between units, never inside one, so a
// stopped run leaves no half-written verdicts.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"conforme/checkpoint"
	"conforme/config"
	"conforme/conformity"
	"conforme/doctext"
	"conforme/extract"
	"conforme/gazette"
	"conforme/portal"
	"conforme/store"
)

// CompanySource enumerates the companies on the filtered portal listing.
// *portal.RowCollector is the production implementation.
type CompanySource interface {
	Collect(ctx context.Context) ([]portal.CompanyRecord, error)
	HardReset(ctx context.Context) error
}

// LinkDiscoverer walks one company's hierarchy and yields its processo links.
// *portal.Navigator is the production implementation.
type LinkDiscoverer interface {
	DiscoverCompany(ctx context.Context, company portal.CompanyRecord) ([]portal.ProcessoLink, error)
}

// PublicationSearcher locates a processo's gazette publication.
// *gazette.Engine is the production implementation.
type PublicationSearcher interface {
	Search(ctx context.Context, processo string, contractDate time.Time) (*gazette.PublicationResult, error)
}

// Summary reports what one batch run did. Skipped units (checkpoint hits)
// are counted separately from processed ones; a resumed run that skips
// everything is a successful no-op, not an empty failure. Failed units are
// broken down by cause so auditors can tell a CAPTCHA outage from a flaky
// portal.
type Summary struct {
	RunID     string         `json:"run_id"`
	Companies int            `json:"companies"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Statuses  map[string]int `json:"statuses"`
	Started   time.Time      `json:"started"`
	Elapsed   time.Duration  `json:"elapsed"`

	SkippedCaptcha int `json:"skipped_captcha"`
	SkippedTimeout int `json:"skipped_timeout"`
	SkippedParse   int `json:"skipped_parse"`
	SkippedOther   int `json:"skipped_other"`
}

// classifyFailure buckets a unit failure into the Summary breakdown.
func (s *Summary) classifyFailure(err error) {
	s.Failed++
	var parseErr *doctext.ParseError
	switch {
	case errors.Is(err, gazette.ErrCaptchaUnresolved):
		s.SkippedCaptcha++
	case errors.Is(err, portal.ErrNavigationTimeout):
		s.SkippedTimeout++
	case errors.As(err, &parseErr):
		s.SkippedParse++
	default:
		s.SkippedOther++
	}
}

// Runner wires the stages of one audit batch.
type Runner struct {
	cfg       *config.Config
	collector CompanySource
	navigator LinkDiscoverer
	engine    PublicationSearcher
	adapter   extract.Adapter
	policy    extract.RetryPolicy
	fetchText func(ctx context.Context, url string) (string, error)
	ledger    *store.Store
	progress  *checkpoint.Checkpoint
	logger    *slog.Logger
}

// NewRunner assembles a Runner. fetchText loads the raw contract text for a
// processo link; it is injected so the pipeline is testable without a
// browser.
func NewRunner(
	cfg *config.Config,
	collector CompanySource,
	navigator LinkDiscoverer,
	engine PublicationSearcher,
	adapter extract.Adapter,
	policy extract.RetryPolicy,
	fetchText func(ctx context.Context, url string) (string, error),
	ledger *store.Store,
	progress *checkpoint.Checkpoint,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		collector: collector,
		navigator: navigator,
		engine:    engine,
		adapter:   adapter,
		policy:    policy,
		fetchText: fetchText,
		ledger:    ledger,
		progress:  progress,
		logger:    logger,
	}
}

// Run executes the full batch and returns its summary. Unit-level failures
// (CAPTCHA unresolved, extraction exhausted, navigation timeouts) skip the
// unit and continue; only persistence failures and cancellation abort.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	sum := &Summary{
		RunID:    uuid.NewString(),
		Statuses: make(map[string]int),
		Started:  started.UTC(),
	}
	r.logger.Info("pipeline: run starting",
		"run_id", sum.RunID, "filter_year", r.cfg.Portal.FilterYear)

	companies, err := r.companies(ctx)
	if err != nil {
		return nil, err
	}
	if r.cfg.Run.MaxCompanies > 0 && len(companies) > r.cfg.Run.MaxCompanies {
		companies = companies[:r.cfg.Run.MaxCompanies]
	}
	sum.Companies = len(companies)

	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if r.progress.CompanyDone(company.CompanyID) {
			r.logger.Debug("pipeline: company already audited", "company", company.CompanyID)
			continue
		}

		links, err := r.navigator.DiscoverCompany(ctx, company)
		if err != nil {
			r.logger.Warn("pipeline: company discovery failed, skipping",
				"company", company.CompanyID, "error", err)
			sum.Failed++
			continue
		}

		companyComplete := true
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			processo := gazette.Normalize(link.Processo)
			if r.progress.ProcessoDone(processo) {
				sum.Skipped++
				continue
			}

			status, err := r.processUnit(ctx, sum.RunID, link)
			switch {
			case errors.Is(err, store.ErrPersistence):
				return sum, err
			case err != nil:
				companyComplete = false
				sum.classifyFailure(err)
				r.logger.Warn("pipeline: unit failed, batch continues",
					"processo", processo, "error", err)
				if cpErr := r.progress.MarkProcessoFailed(processo, err.Error()); cpErr != nil {
					return sum, cpErr
				}
			default:
				sum.Processed++
				sum.Statuses[status]++
				if cpErr := r.progress.MarkProcesso(processo); cpErr != nil {
					return sum, cpErr
				}
			}
		}

		if companyComplete {
			if err := r.progress.MarkCompany(company.CompanyID); err != nil {
				return sum, err
			}
		}
	}

	sum.Elapsed = time.Since(started)
	r.logger.Info("pipeline: run complete",
		"run_id", sum.RunID, "processed", sum.Processed,
		"skipped", sum.Skipped, "failed", sum.Failed,
		"elapsed", sum.Elapsed.String())
	return sum, nil
}

// processUnit audits one processo link end to end and returns the verdict
// status.
func (r *Runner) processUnit(ctx context.Context, runID string, link portal.ProcessoLink) (string, error) {
	processo := gazette.Normalize(link.Processo)
	r.logger.Info("pipeline: auditing unit",
		"processo", processo, "company", link.CompanyID)

	text, err := r.fetchText(ctx, link.URL)
	if err != nil {
		return "", fmt.Errorf("pipeline: fetch contract text: %w", err)
	}

	contract, err := extract.Run(ctx, r.adapter, r.policy, text)
	if err != nil {
		return "", fmt.Errorf("pipeline: extract contract: %w", err)
	}
	if contract.Processo == "" {
		contract.Processo = processo
	}

	contractDate, _ := conformity.ParseDate(contract.DataAssinatura)
	publication, err := r.engine.Search(ctx, processo, contractDate)
	if err != nil {
		return "", fmt.Errorf("pipeline: gazette search: %w", err)
	}

	verdict := conformity.Evaluate(*contract, *publication)

	rec := store.Record{
		RunID:       runID,
		Link:        link,
		Contract:    *contract,
		Publication: *publication,
		Conformity:  verdict,
		AuditedAt:   time.Now().UTC(),
	}
	if err := r.ledger.Save(ctx, rec); err != nil {
		return "", err
	}
	r.writeUnitDoc(processo, rec)

	r.logger.Info("pipeline: verdict stored",
		"processo", processo, "status", verdict.OverallStatus,
		"score", verdict.ConformityScore, "found", publication.Found)
	return string(verdict.OverallStatus), nil
}

// writeUnitDoc mirrors one audited unit as a JSON document under the data
// dir, alongside the ledger. The ledger stays canonical; a failed mirror is a
// warning, never a batch failure. No data dir configured means ledger only.
func (r *Runner) writeUnitDoc(processo string, rec store.Record) {
	if r.cfg.Run.DataDir == "" {
		return
	}
	dir := filepath.Join(r.cfg.Run.DataDir, "resultados")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("pipeline: unit doc dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		r.logger.Warn("pipeline: marshal unit doc", "processo", processo, "error", err)
		return
	}
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(processo) + ".json"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Warn("pipeline: write unit doc", "path", path, "error", err)
	}
}

// RunConformityOnly re-evaluates every stored unit against the current
// conformity rules without touching the portals. Used after rule changes so
// auditors do not re-scrape to refresh verdicts.
func (r *Runner) RunConformityOnly(ctx context.Context) (*Summary, error) {
	started := time.Now()
	sum := &Summary{
		RunID:    uuid.NewString(),
		Statuses: make(map[string]int),
		Started:  started.UTC(),
	}

	records, err := r.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec.RunID = sum.RunID
		rec.Conformity = conformity.Evaluate(rec.Contract, rec.Publication)
		rec.AuditedAt = time.Now().UTC()
		if err := r.ledger.Save(ctx, rec); err != nil {
			return sum, err
		}
		r.writeUnitDoc(rec.Conformity.Processo, rec)
		sum.Processed++
		sum.Statuses[string(rec.Conformity.OverallStatus)]++
	}

	sum.Elapsed = time.Since(started)
	r.logger.Info("pipeline: conformity re-evaluation complete",
		"run_id", sum.RunID, "processed", sum.Processed)
	return sum, nil
}

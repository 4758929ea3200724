package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"conforme/browser"
)

// RodConfig configures the rod-backed portal adapter.
type RodConfig struct {
	BaseURL    string
	FilterYear int
	Timeout    time.Duration
	MinSettle  time.Duration
	Logger     *slog.Logger
}

// rodAdapter implements Adapter over the shared browser session. Every
// selector quirk of the portal's rendering engine is contained here.
type rodAdapter struct {
	session *browser.Session
	cfg     RodConfig
}

// NewRodAdapter creates the production Adapter over a browser session.
func NewRodAdapter(session *browser.Session, cfg RodConfig) Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MinSettle <= 0 {
		cfg.MinSettle = 800 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &rodAdapter{session: session, cfg: cfg}
}

func (a *rodAdapter) listingURL() string {
	return fmt.Sprintf("%s/contratos?ano=%d", a.cfg.BaseURL, a.cfg.FilterYear)
}

func (a *rodAdapter) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.Timeout)
}

func (a *rodAdapter) settle(ctx context.Context) error {
	ictx, cancel := a.bounded(ctx)
	defer cancel()
	return a.session.WaitSettled(ictx, a.cfg.MinSettle)
}

func (a *rodAdapter) Open(ctx context.Context) error {
	ictx, cancel := a.bounded(ctx)
	defer cancel()
	if err := a.session.Navigate(ictx, a.listingURL()); err != nil {
		return err
	}
	return a.settle(ctx)
}

func (a *rodAdapter) ScrollCompanies(ctx context.Context) error {
	ictx, cancel := a.bounded(ctx)
	defer cancel()
	if err := a.session.ScrollToBottom(ictx); err != nil {
		return err
	}
	return a.settle(ctx)
}

// cnpjRe matches the Brazilian company tax identifier in row text.
var cnpjRe = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)

func (a *rodAdapter) VisibleCompanies(ctx context.Context) ([]CompanyRecord, error) {
	ictx, cancel := a.bounded(ctx)
	defer cancel()

	// Read every materialized row in one eval; the table virtualizes rows,
	// so element handles go stale quickly.
	res, err := a.session.Eval(ictx, `() => {
		const rows = [];
		for (const tr of document.querySelectorAll('table tbody tr, [role="row"]')) {
			const text = tr.innerText || '';
			if (text.trim()) rows.push(text.replace(/\s+/g, ' ').trim());
		}
		return JSON.stringify(rows);
	}`)
	if err != nil {
		return nil, fmt.Errorf("portal: read company rows: %w", err)
	}

	var rows []string
	if err := json.Unmarshal([]byte(res.Value.Str()), &rows); err != nil {
		return nil, fmt.Errorf("portal: parse company rows: %w", err)
	}

	var out []CompanyRecord
	for _, text := range rows {
		id := cnpjRe.FindString(text)
		if id == "" {
			continue
		}
		name := trimAround(text, id)
		out = append(out, CompanyRecord{CompanyID: id, Name: name})
	}
	return out, nil
}

func (a *rodAdapter) SelectCompany(ctx context.Context, c CompanyRecord) error {
	ictx, cancel := a.bounded(ctx)
	defer cancel()

	res, err := a.session.Eval(ictx, fmt.Sprintf(`() => {
		for (const tr of document.querySelectorAll('table tbody tr, [role="row"]')) {
			if ((tr.innerText || '').includes(%q)) {
				tr.scrollIntoView({block: 'center'});
				tr.click();
				return true;
			}
		}
		return false;
	}`, c.CompanyID))
	if err != nil {
		return fmt.Errorf("portal: click company row: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("portal: company row not found: %s", c.CompanyID)
	}
	return a.settle(ctx)
}

// nodeSelectors lists the clickable hierarchy containers tried in order, per
// level. The portal renders one panel per level; panels share markup, so the
// same fallbacks apply everywhere.
var nodeSelectors = []string{
	".hierarchy-panel button",
	".nav-tree a",
	"button",
}

func (a *rodAdapter) ListNodes(ctx context.Context, level Level) ([]string, error) {
	ictx, cancel := a.bounded(ctx)
	defer cancel()

	res, err := a.session.Eval(ictx, `() => {
		const names = [];
		const seen = new Set();
		const sels = ['.hierarchy-panel button', '.nav-tree a', 'button, a'];
		for (const sel of sels) {
			for (const el of document.querySelectorAll(sel)) {
				const t = (el.innerText || '').replace(/\s+/g, ' ').trim();
				if (t && t.length < 100 && !seen.has(t)) { seen.add(t); names.push(t); }
			}
			if (names.length) break;
		}
		return JSON.stringify(names);
	}`)
	if err != nil {
		return nil, fmt.Errorf("portal: list %s nodes: %w", level, err)
	}

	var names []string
	if err := json.Unmarshal([]byte(res.Value.Str()), &names); err != nil {
		return nil, fmt.Errorf("portal: parse %s nodes: %w", level, err)
	}
	// Missing panels are empty branches, not failures.
	return names, nil
}

func (a *rodAdapter) SelectNode(ctx context.Context, level Level, name string) error {
	ictx, cancel := a.bounded(ctx)
	defer cancel()

	for _, sel := range nodeSelectors {
		clicked, err := a.session.ClickText(ictx, sel, name)
		if err != nil {
			return fmt.Errorf("portal: select %s %q: %w", level, name, err)
		}
		if clicked {
			return a.settle(ctx)
		}
	}
	return fmt.Errorf("portal: %s node not found: %q", level, name)
}

// Processo identifier shapes seen in link text, most specific first.
var processoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]{2,4}-[A-Z]{2,4}-\d{4}/\d{4,6}`), // SME-PRO-2025/19222
	regexp.MustCompile(`[A-Z]{2,6}\d{6,}`),                    // SMEPRO202519222
	regexp.MustCompile(`\d{5}/\d{4}-\d`),                      // 12345/2021-3
}

func (a *rodAdapter) CollectLinks(ctx context.Context) ([]ProcessoLink, error) {
	ictx, cancel := a.bounded(ctx)
	defer cancel()

	res, err := a.session.Eval(ictx, `() => {
		const links = [];
		for (const el of document.querySelectorAll('a[href]')) {
			const href = el.href || '';
			const text = (el.innerText || '').replace(/\s+/g, ' ').trim();
			if (href.toLowerCase().includes('processo') || /PRO-|[A-Z]{2,6}\d{6,}/.test(text)) {
				links.push({href, text});
			}
		}
		return JSON.stringify(links);
	}`)
	if err != nil {
		return nil, fmt.Errorf("portal: read leaf links: %w", err)
	}

	var raw []struct {
		Href string `json:"href"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &raw); err != nil {
		return nil, fmt.Errorf("portal: parse leaf links: %w", err)
	}

	var out []ProcessoLink
	for _, l := range raw {
		id := extractProcessoID(l.Text, l.Href)
		if id == "" {
			continue
		}
		out = append(out, ProcessoLink{Processo: id, URL: l.Href})
	}
	return out, nil
}

func (a *rodAdapter) Reset(ctx context.Context) error {
	return a.Open(ctx)
}

func (a *rodAdapter) HardReset(ctx context.Context) error {
	ictx, cancel := a.bounded(ctx)
	defer cancel()
	if err := a.session.Navigate(ictx, "about:blank"); err != nil {
		return err
	}
	return a.Open(ctx)
}

var processoURLRe = regexp.MustCompile(`(?i)processo[=/]([A-Z0-9\-/]+)`)

// extractProcessoID pulls a processo identifier out of link text, falling
// back to the URL query.
func extractProcessoID(text, url string) string {
	for _, re := range processoPatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	if m := processoURLRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// trimAround removes the matched identifier from a row text, leaving the
// company name.
func trimAround(text, match string) string {
	idx := strings.Index(text, match)
	if idx < 0 {
		return text
	}
	before := text[:idx]
	after := text[idx+len(match):]
	name := before
	if len(after) > len(before) {
		name = after
	}
	return strings.TrimSpace(name)
}

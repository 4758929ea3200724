// Package gazette locates a contract's official publication on the municipal
// gazette (DoWeb): it submits the processo search, clears the CAPTCHA gate,
// ranks result cards, downloads candidate documents one at a time and
// extracts the published fields from the matching one.
package gazette

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"conforme/browser"
	"conforme/extract"
)

// SearchState tracks the engine's position for failure logging.
type SearchState string

const (
	StateSearchSubmitted SearchState = "SEARCH_SUBMITTED"
	StateCaptchaCheck    SearchState = "CAPTCHA_CHECK"
	StateCaptchaClear    SearchState = "CAPTCHA_CLEAR"
	StateCaptchaBlocked  SearchState = "CAPTCHA_BLOCKED"
	StateResultsRendered SearchState = "RESULTS_RENDERED"
	StateMatchSelected   SearchState = "MATCH_SELECTED"
	StateNoMatch         SearchState = "NO_MATCH"
	StateDownloading     SearchState = "DOWNLOADING"
	StateExtracting      SearchState = "EXTRACTING"
	StateCleanup         SearchState = "CLEANUP"
	StateDone            SearchState = "DONE"
)

// TextFunc extracts plain text from a downloaded document.
type TextFunc func(path string) (string, error)

// FieldFunc extracts the published contract fields from gazette text.
type FieldFunc func(ctx context.Context, text string) (*extract.ContractRecord, error)

// EngineConfig holds the knobs for one Engine.
type EngineConfig struct {
	BaseURL        string
	MaxCandidates  int
	MaxResultPages int
	Timeout        time.Duration
	MinSettle      time.Duration
	Logger         *slog.Logger
}

func (c *EngineConfig) defaults() {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5
	}
	if c.MaxResultPages <= 0 {
		c.MaxResultPages = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MinSettle <= 0 {
		c.MinSettle = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine runs the publication search for one processo at a time.
type Engine struct {
	session  *browser.Session
	gate     *CaptchaGate
	download *Downloader
	pdfText  TextFunc
	fields   FieldFunc
	cfg      EngineConfig

	state SearchState
}

// NewEngine wires a search engine. pdfText and fields are injected so the
// state machine stays testable without a browser or an extraction service.
func NewEngine(session *browser.Session, gate *CaptchaGate, download *Downloader, pdfText TextFunc, fields FieldFunc, cfg EngineConfig) *Engine {
	cfg.defaults()
	return &Engine{
		session:  session,
		gate:     gate,
		download: download,
		pdfText:  pdfText,
		fields:   fields,
		cfg:      cfg,
	}
}

// State returns the engine's last position.
func (e *Engine) State() SearchState { return e.state }

// Search runs the full state machine for one processo. contractDate (zero
// allowed) sharpens candidate ranking by publication proximity.
//
// A search with no confirmed match returns Found=false and a nil error; that
// is a legitimate terminal state. Errors are reserved for the machinery
// failing: navigation, CAPTCHA (ErrCaptchaUnresolved), downloads.
func (e *Engine) Search(ctx context.Context, processo string, contractDate time.Time) (*PublicationResult, error) {
	canonical := Normalize(processo)
	result := &PublicationResult{Processo: canonical, Items: []SearchResultItem{}}

	if err := e.submit(ctx, canonical); err != nil {
		return nil, err
	}

	e.state = StateCaptchaCheck
	if err := e.gate.Clear(ctx); err != nil {
		e.state = StateCaptchaBlocked
		return nil, err
	}
	e.state = StateCaptchaClear

	body, err := e.body(ctx)
	if err != nil {
		return nil, err
	}
	e.state = StateResultsRendered

	if CountResults(body) == 0 {
		e.state = StateNoMatch
		e.cfg.Logger.Info("gazette: no search results", "processo", canonical)
		e.state = StateDone
		return result, nil
	}

	pages := CountPages(body)
	if pages > e.cfg.MaxResultPages {
		pages = e.cfg.MaxResultPages
	}

	checked := 0
	for page := 1; page <= pages; page++ {
		if page > 1 {
			if err := e.goToPage(ctx, page); err != nil {
				e.cfg.Logger.Warn("gazette: pagination failed", "page", page, "error", err)
				continue
			}
			if body, err = e.body(ctx); err != nil {
				return nil, err
			}
		}

		items := Rank(ParseResults(body), canonical, contractDate)
		e.attachCardSnippets(ctx, items)
		urls, err := e.downloadURLs(ctx)
		if err != nil {
			return nil, err
		}
		// Item indexes are page-local (they address this page's download
		// links and cards); rebase the persisted copies so the audit trail
		// carries distinct indexes across pages.
		result.Items = append(result.Items, offsetItems(items, len(result.Items))...)

		for _, item := range items {
			if checked >= e.cfg.MaxCandidates {
				break
			}
			if item.Index >= len(urls) || urls[item.Index] == "" {
				continue
			}
			checked++

			matched, record, err := e.checkCandidate(ctx, canonical, urls[item.Index])
			if err != nil {
				e.cfg.Logger.Warn("gazette: candidate check failed",
					"processo", canonical, "edition", item.Edition, "error", err)
				continue
			}
			if !matched {
				continue
			}

			e.state = StateMatchSelected
			result.Found = true
			result.PublicationDate = item.PublicationDate
			result.PublicationURL = urls[item.Index]
			result.Edition = item.Edition
			result.Page = item.Page
			result.Extracted = record
			e.state = StateDone
			e.cfg.Logger.Info("gazette: publication located",
				"processo", canonical, "date", item.PublicationDate,
				"edition", item.Edition, "checked", checked)
			return result, nil
		}
	}

	e.state = StateNoMatch
	e.cfg.Logger.Info("gazette: no confirmed match",
		"processo", canonical, "candidates_checked", checked)
	e.state = StateDone
	return result, nil
}

// checkCandidate downloads one document, verifies the processo appears in its
// text, and extracts the published fields on a match. The temp file is
// removed on every path.
func (e *Engine) checkCandidate(ctx context.Context, processo, docURL string) (bool, *extract.ContractRecord, error) {
	e.state = StateDownloading
	path, cleanup, err := e.download.Fetch(ctx, docURL)
	if err != nil {
		return false, nil, err
	}
	defer func() {
		e.state = StateCleanup
		cleanup()
	}()

	e.state = StateExtracting
	text, err := e.pdfText(path)
	if err != nil {
		return false, nil, fmt.Errorf("gazette: extract text: %w", err)
	}

	if !Matches(processo, text) {
		return false, nil, nil
	}

	record, err := e.fields(ctx, text)
	if err != nil {
		return false, nil, fmt.Errorf("gazette: extract fields: %w", err)
	}
	return true, record, nil
}

func (e *Engine) submit(ctx context.Context, processo string) error {
	searchURL := fmt.Sprintf("%s/buscanova/#/p=1&q=%s", e.cfg.BaseURL, url.QueryEscape(processo))
	ictx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.session.Navigate(ictx, searchURL); err != nil {
		return fmt.Errorf("gazette: submit search: %w", err)
	}
	e.state = StateSearchSubmitted
	return e.session.WaitSettled(ictx, e.cfg.MinSettle)
}

func (e *Engine) body(ctx context.Context) (string, error) {
	ictx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	body, err := e.session.BodyText(ictx)
	if err != nil {
		return "", fmt.Errorf("gazette: read results: %w", err)
	}
	return body, nil
}

// downloadURLs reads the per-card document links in card order. The portal
// exposes one "Baixar apenas a página" link per result.
func (e *Engine) downloadURLs(ctx context.Context) ([]string, error) {
	ictx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	res, err := e.session.Eval(ictx, `() => {
		const urls = [];
		for (const a of document.querySelectorAll('a[href*="/edicoes/download/"]')) {
			urls.push(a.href);
		}
		return JSON.stringify(urls);
	}`)
	if err != nil {
		return nil, fmt.Errorf("gazette: read download links: %w", err)
	}

	var urls []string
	if err := json.Unmarshal([]byte(res.Value.Str()), &urls); err != nil {
		return nil, fmt.Errorf("gazette: parse download links: %w", err)
	}
	return urls, nil
}

// attachCardSnippets replaces each item's raw text preview with a sanitized
// markdown rendering of its result card, when the card markup is readable.
// Failure here degrades the audit trail, never the search.
func (e *Engine) attachCardSnippets(ctx context.Context, items []SearchResultItem) {
	ictx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	res, err := e.session.Eval(ictx, `() => {
		const cards = [];
		for (const el of document.querySelectorAll('.busca-resultado, .result-item, article')) {
			cards.push(el.innerHTML);
		}
		return JSON.stringify(cards);
	}`)
	if err != nil {
		e.cfg.Logger.Debug("gazette: card snippet read failed", "error", err)
		return
	}

	var cards []string
	if err := json.Unmarshal([]byte(res.Value.Str()), &cards); err != nil || len(cards) == 0 {
		return
	}
	for i := range items {
		if items[i].Index < len(cards) {
			items[i].Snippet = SanitizeSnippet(cards[items[i].Index])
		}
	}
}

func (e *Engine) goToPage(ctx context.Context, page int) error {
	ictx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	clicked, err := e.session.ClickText(ictx, "ul.pagination a", fmt.Sprintf("%d", page))
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("gazette: pagination link %d not found", page)
	}
	return e.session.WaitSettled(ictx, e.cfg.MinSettle)
}

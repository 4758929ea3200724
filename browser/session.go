package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Session wraps the single rod page with the semantic operations the portal
// and gazette engines need. All methods take a context that bounds the
// interaction; the underlying page is never shared between goroutines.
type Session struct {
	page   *rod.Page
	logger *slog.Logger
}

// Navigate loads a URL and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// WaitSettled waits for the page to stop re-rendering. It polls the rendered
// DOM size until two consecutive polls agree, always waiting at least
// minSettle first; this portal's rendering engine keeps mutating the tree
// briefly after it looks stable. Returns an error if the page never settles
// within the context deadline.
func (s *Session) WaitSettled(ctx context.Context, minSettle time.Duration) error {
	if err := sleepCtx(ctx, minSettle); err != nil {
		return err
	}

	const pollInterval = 200 * time.Millisecond
	prev := -1
	stable := 0
	for {
		size, err := s.domSize(ctx)
		if err != nil {
			return fmt.Errorf("browser: settle poll: %w", err)
		}
		if size == prev {
			stable++
			if stable >= 2 {
				return nil
			}
		} else {
			stable = 0
		}
		prev = size
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return fmt.Errorf("browser: page never settled: %w", err)
		}
	}
}

func (s *Session) domSize(ctx context.Context) (int, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML.length`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// BodyText returns the rendered text of the page body.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.body.innerText`)
	if err != nil {
		return "", fmt.Errorf("browser: body text: %w", err)
	}
	return res.Value.Str(), nil
}

// Elements returns all elements matching a CSS selector. A selector that
// matches nothing yields an empty slice, not an error. Missing nodes are
// empty branches for the navigator, never fatal.
func (s *Session) Elements(ctx context.Context, selector string) (rod.Elements, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: elements %q: %w", selector, err)
	}
	return els, nil
}

// ClickText clicks the first element matching the selector whose trimmed text
// equals want. Returns false when no such element exists.
func (s *Session) ClickText(ctx context.Context, selector, want string) (bool, error) {
	els, err := s.Elements(ctx, selector)
	if err != nil {
		return false, err
	}
	for _, el := range els {
		txt, err := el.Text()
		if err != nil {
			continue
		}
		if trimmed(txt) != want {
			continue
		}
		if err := el.ScrollIntoView(); err == nil {
			if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
				return false, fmt.Errorf("browser: click %q: %w", want, err)
			}
			return true, nil
		}
	}
	return false, nil
}

// ScrollToBottom scrolls the main scroll container to its end, forcing a
// virtualized table to materialize further rows.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => {
		window.scrollTo(0, document.body.scrollHeight);
		for (const el of document.querySelectorAll('*')) {
			if (el.scrollHeight > el.clientHeight + 50) {
				el.scrollTop = el.scrollHeight;
			}
		}
	}`)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// Back navigates one step back in session history.
func (s *Session) Back(ctx context.Context) error {
	if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("browser: back: %w", err)
	}
	return nil
}

// Eval runs a JS function on the page and returns the raw result.
func (s *Session) Eval(ctx context.Context, js string) (*proto.RuntimeRemoteObject, error) {
	return s.page.Context(ctx).Eval(js)
}

func trimmed(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

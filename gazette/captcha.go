package gazette

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conforme/browser"
)

// ErrCaptchaUnresolved is returned when neither the automated attempts nor
// the manual-solve window cleared the gate. The unit is skipped; the batch
// continues.
var ErrCaptchaUnresolved = errors.New("gazette: captcha unresolved")

// CaptchaGate clears the gazette's challenge page. It tries the checkbox
// automatically a bounded number of times; if the challenge escalates to an
// image puzzle it suspends and polls for a human solve until the manual
// window expires.
type CaptchaGate struct {
	session      *browser.Session
	autoAttempts int
	manualWait   time.Duration
	pollEvery    time.Duration
	logger       *slog.Logger
}

// NewCaptchaGate builds a gate over the shared session.
func NewCaptchaGate(session *browser.Session, autoAttempts int, manualWait time.Duration, logger *slog.Logger) *CaptchaGate {
	if autoAttempts <= 0 {
		autoAttempts = 3
	}
	if manualWait <= 0 {
		manualWait = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptchaGate{
		session:      session,
		autoAttempts: autoAttempts,
		manualWait:   manualWait,
		pollEvery:    5 * time.Second,
		logger:       logger,
	}
}

// Clear returns nil when no challenge is present or once it has been solved.
// It returns ErrCaptchaUnresolved after the manual window expires, and the
// context error if the caller cancels while suspended.
func (g *CaptchaGate) Clear(ctx context.Context) error {
	blocked, err := g.detect(ctx)
	if err != nil {
		return err
	}
	if !blocked {
		return nil
	}

	g.logger.Info("gazette: captcha detected, attempting automated solve")
	for attempt := 1; attempt <= g.autoAttempts; attempt++ {
		if err := g.clickCheckbox(ctx); err != nil {
			g.logger.Debug("gazette: checkbox click failed", "attempt", attempt, "error", err)
		}
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return err
		}
		blocked, err = g.detect(ctx)
		if err != nil {
			return err
		}
		if !blocked {
			g.logger.Info("gazette: captcha cleared automatically", "attempts", attempt)
			return nil
		}
	}

	// Escalated to an image challenge. Suspend and wait for a human.
	g.logger.Warn("gazette: captcha needs manual solve, waiting",
		"window", g.manualWait.String())
	deadline := time.Now().Add(g.manualWait)
	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, g.pollEvery); err != nil {
			return err
		}
		blocked, err = g.detect(ctx)
		if err != nil {
			return err
		}
		if !blocked {
			g.logger.Info("gazette: captcha cleared manually")
			return nil
		}
	}

	return fmt.Errorf("%w: manual window of %s expired", ErrCaptchaUnresolved, g.manualWait)
}

// detect reports whether a challenge currently blocks the page.
func (g *CaptchaGate) detect(ctx context.Context) (bool, error) {
	res, err := g.session.Eval(ctx, `() => {
		if (document.querySelector('iframe[src*="recaptcha"], iframe[src*="hcaptcha"]')) return true;
		const t = (document.body.innerText || '').toLowerCase();
		return t.includes('não sou um robô') || t.includes('verificação de segurança');
	}`)
	if err != nil {
		return false, fmt.Errorf("gazette: captcha detect: %w", err)
	}
	return res.Value.Bool(), nil
}

// clickCheckbox clicks the challenge checkbox inside the widget iframe.
func (g *CaptchaGate) clickCheckbox(ctx context.Context) error {
	_, err := g.session.Eval(ctx, `() => {
		const frame = document.querySelector('iframe[src*="recaptcha"], iframe[src*="hcaptcha"]');
		if (frame) frame.scrollIntoView({block: 'center'});
		const box = document.querySelector('.recaptcha-checkbox, #recaptcha-anchor');
		if (box) box.click();
	}`)
	if err != nil {
		return fmt.Errorf("gazette: captcha checkbox: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

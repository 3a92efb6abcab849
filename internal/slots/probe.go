package slots

import (
	"context"
	"fmt"
	"time"

	"slotbot/internal/browser"
	logx "slotbot/pkg/logx"
)

// Probe checks the landing page for the "no free slots" sentinel.
type Probe struct {
	RenderWait time.Duration
	Sleep      SleepFunc

	log logx.Logger
}

func NewProbe(log logx.Logger) *Probe {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Probe{RenderWait: DefaultRenderWait, Sleep: Sleep, log: log}
}

// Check navigates to url, waits RenderWait and reports true when the sentinel
// is absent from the rendered text.
func (p *Probe) Check(ctx context.Context, s browser.Session, url string) (bool, error) {
	p.log.Info("loading page", logx.String("url", url))
	if err := s.Navigate(ctx, url); err != nil {
		return false, navError(ctx, url, err)
	}

	p.log.Debug("waiting for render", logx.Duration("wait", p.RenderWait))
	if err := p.sleep(ctx, p.RenderWait); err != nil {
		return false, err
	}

	raw, err := s.Content(ctx)
	if err != nil {
		return false, navError(ctx, url, err)
	}
	text, err := pageText(raw)
	if err != nil {
		return false, err
	}

	ok := Available(text)
	p.log.Info("availability checked", logx.Bool("available", ok))
	return ok, nil
}

func (p *Probe) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep == nil {
		return Sleep(ctx, d)
	}
	return p.Sleep(ctx, d)
}

// navError classifies a page-level failure. Cancellation passes through as is.
func navError(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
}

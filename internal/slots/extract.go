package slots

import (
	"context"
	"fmt"
	"time"

	"slotbot/internal/browser"
	logx "slotbot/pkg/logx"
)

// Extractor clicks through every enabled date control and counts the slots
// shown for each date.
//
// Clicking a control reloads the page and invalidates every element handle
// resolved before it. The extractor therefore only keeps labels between
// clicks and re-queries the controls before each activation.
type Extractor struct {
	InitialWait time.Duration
	ClickWait   time.Duration
	Sleep       SleepFunc

	log logx.Logger
}

func NewExtractor(log logx.Logger) *Extractor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Extractor{
		InitialWait: DefaultRenderWait,
		ClickWait:   DefaultClickWait,
		Sleep:       Sleep,
		log:         log,
	}
}

// Extract returns one Summary per distinct enabled date label, in the order
// the labels were first seen on the landing page. A control that cannot be
// found again (or cannot be clicked) is skipped and logged, never returned as
// an error.
func (x *Extractor) Extract(ctx context.Context, s browser.Session, url string) ([]Summary, error) {
	x.log.Info("extracting slots", logx.String("url", url))
	if err := s.Navigate(ctx, url); err != nil {
		return nil, navError(ctx, url, err)
	}
	if err := x.sleep(ctx, x.InitialWait); err != nil {
		return nil, err
	}

	labels, err := x.enabledLabels(ctx, s)
	if err != nil {
		return nil, err
	}
	x.log.Debug("enabled dates found", logx.Int("count", len(labels)), logx.Strs("labels", labels))

	out := make([]Summary, 0, len(labels))
	for _, label := range labels {
		el, ok := x.resolve(ctx, s, label)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ok {
			x.log.Warn("date control vanished; skipping", logx.String("label", label))
			continue
		}

		if err := el.Click(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			x.log.Warn("date control click failed; skipping", logx.String("label", label), logx.Err(err))
			continue
		}
		x.log.Debug("date clicked", logx.String("label", label), logx.Duration("wait", x.ClickWait))
		if err := x.sleep(ctx, x.ClickWait); err != nil {
			return nil, err
		}

		raw, err := s.Content(ctx)
		if err != nil {
			return nil, navError(ctx, url, err)
		}
		sum, err := parseDayPage(raw)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", label, err)
		}
		x.log.Debug("date parsed", logx.String("label", label), logx.String("date", sum.Date), logx.Int("slots", sum.Count))
		out = append(out, sum)
	}
	return out, nil
}

// enabledLabels lists the distinct labels of enabled controls, in discovery order.
func (x *Extractor) enabledLabels(ctx context.Context, s browser.Session) ([]string, error) {
	controls, err := s.Query(ctx, DayControlSelector)
	if err != nil {
		return nil, fmt.Errorf("list date controls: %w", err)
	}
	seen := make(map[string]struct{}, len(controls))
	labels := make([]string, 0, len(controls))
	for _, c := range controls {
		disabled, err := c.Disabled()
		if err != nil {
			return nil, fmt.Errorf("read date control state: %w", err)
		}
		if disabled {
			continue
		}
		aria, err := c.Attribute("aria-label")
		if err != nil {
			return nil, fmt.Errorf("read date control label: %w", err)
		}
		label := controlLabel(aria)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels, nil
}

// resolve re-queries the page and returns the first control carrying label.
func (x *Extractor) resolve(ctx context.Context, s browser.Session, label string) (browser.Element, bool) {
	controls, err := s.Query(ctx, DayControlSelector)
	if err != nil {
		x.log.Debug("date control query failed", logx.String("label", label), logx.Err(err))
		return nil, false
	}
	for _, c := range controls {
		aria, err := c.Attribute("aria-label")
		if err != nil {
			continue
		}
		if controlLabel(aria) == label {
			return c, true
		}
	}
	return nil, false
}

func (x *Extractor) sleep(ctx context.Context, d time.Duration) error {
	if x.Sleep == nil {
		return Sleep(ctx, d)
	}
	return x.Sleep(ctx, d)
}

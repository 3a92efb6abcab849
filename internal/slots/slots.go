// Package slots reads appointment availability from the booking page.
//
// Probe answers "is anything free at all" from the landing page text.
// Extractor walks every enabled date control and counts the bookable times
// behind it. Both wait fixed durations for client-side rendering.
package slots

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultRenderWait = 10 * time.Second
	DefaultClickWait  = 10 * time.Second
)

// ErrNavigation means the target page could not be loaded or read.
var ErrNavigation = errors.New("navigation failed")

// Summary is the number of bookable times for one date. Date is the heading
// text exactly as the page renders it (locale-dependent).
type Summary struct {
	Date  string
	Count int
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package watch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotbot/internal/browser"
	"slotbot/internal/slots"
	"slotbot/internal/transport"
)

const (
	// DefaultEvery is the polling period.
	DefaultEvery       = 15 * time.Minute
	DefaultHistorySize = 20
)

const (
	SkipNoSubscribers = "no subscribers"
	SkipInProgress    = "cycle in progress"
)

type Config struct {
	TargetURL   string
	Every       time.Duration
	HistorySize int
}

// Checker reports whether the landing page shows free slots.
type Checker interface {
	Check(ctx context.Context, s browser.Session, url string) (bool, error)
}

// Extractor lists the free slots per date.
type Extractor interface {
	Extract(ctx context.Context, s browser.Session, url string) ([]slots.Summary, error)
}

// Notifier accepts outbound messages for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, n transport.Notification) error
}

// Result is the outcome of one probe+extract pass.
type Result struct {
	Available bool
	Summaries []slots.Summary
}

// Cycle records one scheduled (or manually triggered) run.
type Cycle struct {
	ID        uuid.UUID
	Trigger   string
	Started   time.Time
	Finished  time.Time
	Available bool
	Summaries []slots.Summary
	Notified  int
	Skipped   string
	Err       error
}

func (c Cycle) Duration() time.Duration { return c.Finished.Sub(c.Started) }

type Snapshot struct {
	Running     bool
	InProgress  bool
	Every       time.Duration
	Next        time.Time
	Subscribers int
	History     []Cycle // newest last
}

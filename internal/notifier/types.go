package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

type HistoryItem struct {
	At     time.Time
	ChatID int64
	Text   string
}

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	Queued  int64
	Sent    int64
	Failed  int64
	Deduped int64
	Dropped int64
	Pending int
}

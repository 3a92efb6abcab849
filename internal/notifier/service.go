package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"slotbot/internal/transport"
	logx "slotbot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

const (
	historyMax  = 300
	sendTimeout = 10 * time.Second
)

type job struct {
	n transport.Notification
	// dedupKey is computed at enqueue time for cheap per-worker processing.
	dedupKey string
}

// Service implements an async notification pipeline:
// queue + worker pool + rate limit + retry + dedup.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue     chan job
	workerWG  sync.WaitGroup
	runCancel context.CancelFunc
	stopDone  chan struct{} // non-nil while stopping

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	queued, sent, failed, deduped, dropped atomic.Int64
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		log:     log,
		dedup:   map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps pacing, retry and dedup settings. Worker count and queue size
// take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		// Telegram allows ~30 msgs/s per bot across chats.
		cfg.RatePerSec = 25
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start launches the worker pool. It is idempotent. Workers outlive ctx
// cancellation; only Stop ends them, after draining the queue.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	q := s.queue
	s.workerWG.Add(workers)
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			s.workerLoop(runCtx, q, idx)
		}()
	}
	s.log.Info("notifier started", logx.Int("workers", workers))
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
// Whatever is still queued when ctx expires is abandoned.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	cancel := s.runCancel
	s.mu.Unlock()

	go func() {
		defer close(done)
		// Wait for in-flight enqueues, then close the queue so workers drain.
		s.sendWG.Wait()
		close(q)
		s.workerWG.Wait()
		cancel()

		s.mu.Lock()
		s.queue = nil
		s.runCancel = nil
		s.stopDone = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
		s.log.Info("notifier stopped")
	case <-ctx.Done():
		// Force workers out of rate-limit waits and backoff sleeps.
		cancel()
		s.log.Warn("notifier stop deadline exceeded; pending messages dropped", logx.Int("pending", len(q)))
	}
}

// Notify enqueues n. It never blocks on delivery: a full queue yields
// ErrQueueFull and a stopped service yields ErrStopped.
func (s *Service) Notify(ctx context.Context, n transport.Notification) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	dedupWindow := s.cfg.DedupWindow
	dedupMax := s.cfg.DedupMaxEntries
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	key := dedupKey(n)
	if dedupWindow > 0 && key != "" {
		if !s.dedupAllow(key, dedupWindow, dedupMax) {
			s.deduped.Add(1)
			s.log.Debug("notification deduped", logx.Int64("chat_id", n.Target.ChatID), logx.String("key", key))
			return nil
		}
	}

	select {
	case q <- job{n: n, dedupKey: key}:
		s.queued.Add(1)
		return nil
	default:
		s.dropped.Add(1)
		s.log.Warn("notification dropped", logx.Int64("chat_id", n.Target.ChatID), logx.Err(ErrQueueFull))
		return ErrQueueFull
	}
}

// History returns delivered messages, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) Stats() Stats {
	st := Stats{
		Queued:  s.queued.Load(),
		Sent:    s.sent.Load(),
		Failed:  s.failed.Load(),
		Deduped: s.deduped.Load(),
		Dropped: s.dropped.Load(),
	}
	s.mu.Lock()
	if s.queue != nil {
		st.Pending = len(s.queue)
	}
	s.mu.Unlock()
	return st
}

func (s *Service) appendHistory(chatID int64, text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), ChatID: chatID, Text: text})
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job, idx int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in notifier worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, j)
		}
	}
}

func (s *Service) sendWithRetry(runCtx context.Context, j job) {
	// config snapshot for this send
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	s.mu.Unlock()

	if ad == nil || j.n.Text == "" {
		return
	}

	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(runCtx); err != nil {
				return
			}
		}

		// Bound per-send call. Keep tight to avoid hanging workers.
		callCtx, cancel := context.WithTimeout(runCtx, sendTimeout)
		_, err := ad.SendText(callCtx, j.n.Target, j.n.Text, j.n.Options)
		cancel()
		if err == nil {
			s.sent.Add(1)
			s.appendHistory(j.n.Target.ChatID, j.n.Text)
			return
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}

		delay := retryDelay(cfg, attempt)
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-runCtx.Done():
			t.Stop()
			return
		}
	}

	s.failed.Add(1)
	s.log.Warn("notification failed", logx.Int64("chat_id", j.n.Target.ChatID), logx.Int("attempts", maxAttempts), logx.Err(lastErr))
}

func dedupKey(n transport.Notification) string {
	if n.Channel == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(n.Channel))
	_, _ = fmt.Fprintf(h, "|%d:%d|", n.Target.ChatID, n.Target.ThreadID)
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(key string, window time.Duration, max int) bool {
	now := time.Now()

	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)

	// Prune expired and cap.
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	for max > 0 && len(s.dedup) > max {
		var (
			minKey string
			minT   time.Time
			set    bool
		)
		for k, t := range s.dedup {
			if !set || t.Before(minT) {
				minKey, minT, set = k, t, true
			}
		}
		delete(s.dedup, minKey)
	}
	return true
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	d := cfg.RetryBase
	maxD := cfg.RetryMaxDelay
	// Exponential backoff: base * 2^(attempt-1)
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}

package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"slotbot/internal/browser"
	"slotbot/internal/subscribers"
	logx "slotbot/pkg/logx"
)

// Service is the notification scheduler.
type Service struct {
	cfg Config
	log logx.Logger

	factory  browser.Factory
	probe    Checker
	extract  Extractor
	subs     *subscribers.Registry
	notifier Notifier

	// gate holds the single browser slot shared by cycles and CheckNow.
	gate chan struct{}
	busy atomic.Bool

	mu     sync.Mutex
	c      *cron.Cron
	entry  cron.EntryID
	cancel context.CancelFunc
	wg     sync.WaitGroup

	hmu     sync.Mutex
	history []Cycle
}

func New(cfg Config, factory browser.Factory, probe Checker, extract Extractor, subs *subscribers.Registry, n Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Every <= 0 {
		cfg.Every = DefaultEvery
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		factory:  factory,
		probe:    probe,
		extract:  extract,
		subs:     subs,
		notifier: n,
		gate:     make(chan struct{}, 1),
	}
}

// Start registers the periodic cycle. The first cycle runs one period after
// Start. Start is idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log: s.log})))
	entry, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Every), func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.RunCycle(runCtx, "timer")
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule watch cycle: %w", err)
	}
	c.Start()

	s.c, s.entry, s.cancel = c, entry, cancel
	s.log.Info("watch started", logx.Duration("every", s.cfg.Every), logx.String("url", s.cfg.TargetURL))
	return nil
}

// Stop stops the timer and cancels a running cycle, then waits for it to
// unwind or for ctx to expire.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel, s.entry = nil, nil, 0
	s.mu.Unlock()
	if c == nil {
		return
	}

	stopped := c.Stop()
	cancel()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("watch stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		s.log.Warn("watch stop deadline exceeded")
	}
}

// RunNow runs one cycle outside the timer, subject to the same
// single-flight rule.
func (s *Service) RunNow(ctx context.Context) Cycle {
	return s.RunCycle(ctx, "manual")
}

func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{
		Every:       s.cfg.Every,
		InProgress:  s.busy.Load(),
		Subscribers: s.subs.Len(),
	}
	s.mu.Lock()
	if s.c != nil {
		snap.Running = true
		snap.Next = s.c.Entry(s.entry).Next
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.History = append([]Cycle(nil), s.history...)
	s.hmu.Unlock()
	return snap
}

func (s *Service) record(c Cycle) Cycle {
	c.Finished = time.Now()
	s.hmu.Lock()
	s.history = append(s.history, c)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()
	return c
}

// cronLogger routes cron's own messages (mostly recovered panics) to logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug(msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error(msg, logx.Err(err), logx.Any("kv", kv))
}

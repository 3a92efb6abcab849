package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotbot/internal/browser"
	"slotbot/internal/slots"
	"slotbot/internal/transport"
	logx "slotbot/pkg/logx"
)

const channelTelegram = "telegram"

// RunCycle performs one scheduler cycle and returns its record. Failures are
// logged and recorded on the Cycle; they never reach the caller as errors so
// the next cycle is unaffected.
func (s *Service) RunCycle(ctx context.Context, trigger string) Cycle {
	c := Cycle{ID: uuid.New(), Trigger: trigger, Started: time.Now()}
	log := s.log.With(logx.String("cycle", c.ID.String()), logx.String("trigger", trigger))

	if !s.busy.CompareAndSwap(false, true) {
		log.Warn("cycle skipped; previous cycle still running")
		c.Skipped = SkipInProgress
		return s.record(c)
	}
	defer s.busy.Store(false)

	if s.subs.Len() == 0 {
		log.Debug("cycle skipped; no subscribers")
		c.Skipped = SkipNoSubscribers
		return s.record(c)
	}

	res, err := s.check(ctx, log)
	if err != nil {
		log.Error("cycle failed", logx.Err(err))
		c.Err = err
		return s.record(c)
	}
	c.Available = res.Available
	c.Summaries = res.Summaries
	if !res.Available {
		log.Info("no appointments available")
		return s.record(c)
	}

	msg := ComposeMessage(res.Summaries, s.cfg.TargetURL)
	ids := s.subs.All()
	for _, id := range ids {
		err := s.notifier.Notify(ctx, transport.Notification{
			Channel: channelTelegram,
			Target:  transport.ChatTarget{ChatID: int64(id)},
			Text:    msg,
		})
		if err != nil {
			log.Warn("notify subscriber failed", logx.Int64("chat_id", int64(id)), logx.Err(err))
			continue
		}
		c.Notified++
	}
	log.Info("appointments available; subscribers notified",
		logx.Int("dates", len(res.Summaries)),
		logx.Int("notified", c.Notified),
		logx.Int("subscribers", len(ids)),
	)
	return s.record(c)
}

// CheckNow probes the booking page and, when something is free, extracts the
// per-date summaries. It waits for the browser slot if a cycle holds it.
func (s *Service) CheckNow(ctx context.Context) (Result, error) {
	return s.check(ctx, s.log.With(logx.String("trigger", "check")))
}

func (s *Service) check(ctx context.Context, log logx.Logger) (Result, error) {
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-s.gate }()

	var res Result
	start := time.Now()
	err := browser.Use(ctx, s.factory, func(sess browser.Session) error {
		ok, err := s.probe.Check(ctx, sess, s.cfg.TargetURL)
		if err != nil {
			return err
		}
		res.Available = ok
		if !ok {
			return nil
		}
		sums, err := s.extract.Extract(ctx, sess, s.cfg.TargetURL)
		if err != nil {
			return err
		}
		res.Summaries = sums
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	log.Debug("check finished", logx.Bool("available", res.Available), logx.Int("dates", len(res.Summaries)), logx.Duration("took", time.Since(start)))
	return res, nil
}

// ComposeMessage renders the subscriber alert for the given summaries.
func ComposeMessage(sums []slots.Summary, url string) string {
	var b strings.Builder
	b.WriteString("Appointments available!\n")
	for _, sum := range sums {
		date := strings.TrimSpace(sum.Date)
		if date == "" {
			date = "(unknown date)"
		}
		fmt.Fprintf(&b, "- %s: %d %s\n", date, sum.Count, plural(sum.Count, "slot", "slots"))
	}
	fmt.Fprintf(&b, "Please visit %s to make an appointment", url)
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

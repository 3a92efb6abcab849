package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbot/internal/browser"
	"slotbot/internal/browser/browsertest"
	"slotbot/internal/slots"
	"slotbot/internal/subscribers"
	"slotbot/internal/transport"
	logx "slotbot/pkg/logx"
)

const testURL = "https://booking.example/consulate"

type recordingNotifier struct {
	mu  sync.Mutex
	got []transport.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n transport.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, n)
	return nil
}

func (r *recordingNotifier) All() []transport.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Notification(nil), r.got...)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type harness struct {
	svc     *Service
	site    *browsertest.Site
	factory *browsertest.Factory
	subs    *subscribers.Registry
	sent    *recordingNotifier
}

func newHarness(t *testing.T, site *browsertest.Site) *harness {
	t.Helper()
	probe := slots.NewProbe(logx.Nop())
	probe.Sleep = noSleep
	ext := slots.NewExtractor(logx.Nop())
	ext.Sleep = noSleep

	h := &harness{
		site:    site,
		factory: &browsertest.Factory{Site: site},
		subs:    subscribers.NewRegistry(),
		sent:    &recordingNotifier{},
	}
	h.svc = New(Config{TargetURL: testURL}, h.factory, probe, ext, h.subs, h.sent, logx.Nop())
	return h
}

func openSite() *browsertest.Site {
	return &browsertest.Site{
		Banner: "Оберіть дату",
		Days: []browsertest.Day{
			{Label: "Mon", Heading: "понеділок, 3 березня", Slots: []string{"09:00", "09:30"}},
			{Label: "Tue", Disabled: true},
			{Label: "Wed", Heading: "середа, 5 березня", Slots: []string{"11:00"}},
		},
	}
}

func TestCycleWithoutSubscribersSkipsBrowser(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())

	c := h.svc.RunCycle(context.Background(), "timer")

	assert.Equal(t, SkipNoSubscribers, c.Skipped)
	assert.Zero(t, h.factory.Acquired())
	assert.Empty(t, h.sent.All())
}

func TestCycleNotifiesEverySubscriber(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())
	h.subs.Subscribe(10)
	h.subs.Subscribe(20)

	c := h.svc.RunCycle(context.Background(), "timer")

	require.NoError(t, c.Err)
	assert.True(t, c.Available)
	assert.Equal(t, 2, c.Notified)
	assert.Equal(t, 1, h.factory.Acquired())
	assert.True(t, h.site.Closed())

	got := h.sent.All()
	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].Target.ChatID)
	assert.Equal(t, int64(20), got[1].Target.ChatID)
	want := "Appointments available!\n" +
		"- понеділок, 3 березня: 2 slots\n" +
		"- середа, 5 березня: 1 slot\n" +
		"Please visit " + testURL + " to make an appointment"
	assert.Equal(t, want, got[0].Text)
}

func TestCycleNothingAvailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &browsertest.Site{Banner: slots.NoSlotsSentinel})
	h.subs.Subscribe(1)

	c := h.svc.RunCycle(context.Background(), "timer")

	require.NoError(t, c.Err)
	assert.False(t, c.Available)
	assert.Empty(t, h.sent.All())
	assert.Zero(t, h.site.Clicks())
	assert.True(t, h.site.Closed())
}

func TestCycleErrorsAbortBeforeNotify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(h *harness)
		want  error
	}{
		{
			name:  "session unavailable",
			setup: func(h *harness) { h.factory.Err = errors.New("connection refused") },
			want:  browser.ErrSessionUnavailable,
		},
		{
			name:  "navigation failure",
			setup: func(h *harness) { h.site.NavigateErr = errors.New("net::ERR_TIMED_OUT") },
			want:  slots.ErrNavigation,
		},
		{
			name:  "page read failure",
			setup: func(h *harness) { h.site.ContentErr = errors.New("target closed") },
			want:  slots.ErrNavigation,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, openSite())
			h.subs.Subscribe(1)
			tt.setup(h)

			c := h.svc.RunCycle(context.Background(), "timer")

			assert.ErrorIs(t, c.Err, tt.want)
			assert.Empty(t, h.sent.All())
			assert.Zero(t, c.Notified)

			// The next cycle is unaffected once the fault clears.
			h.factory.Err, h.site.NavigateErr, h.site.ContentErr = nil, nil, nil
			next := h.svc.RunCycle(context.Background(), "timer")
			require.NoError(t, next.Err)
			assert.Equal(t, 1, next.Notified)
		})
	}
}

func TestCycleSingleFlight(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())
	h.subs.Subscribe(1)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.factory.Hook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	first := make(chan Cycle, 1)
	go func() { first <- h.svc.RunCycle(context.Background(), "timer") }()
	<-entered

	skipped := h.svc.RunNow(context.Background())
	assert.Equal(t, SkipInProgress, skipped.Skipped)
	assert.True(t, h.svc.Snapshot().InProgress)

	close(release)
	c := <-first
	require.NoError(t, c.Err)
	assert.Equal(t, 1, h.factory.Acquired())
	assert.Len(t, h.sent.All(), 1)
}

func TestCheckNowIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())

	first, err := h.svc.CheckNow(context.Background())
	require.NoError(t, err)
	second, err := h.svc.CheckNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Available)
	assert.Len(t, first.Summaries, 2)
	assert.Equal(t, 2, h.factory.Acquired())
}

func TestCheckNowWaitsForBrowserSlot(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())
	h.svc.gate <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.svc.CheckNow(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, h.factory.Acquired())
}

func TestNotifyFailureDoesNotStopFanOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())
	h.subs.Subscribe(1)
	h.sent.err = errors.New("queue full")

	c := h.svc.RunCycle(context.Background(), "timer")

	require.NoError(t, c.Err)
	assert.Zero(t, c.Notified)
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())
	h.svc.cfg.HistorySize = 3

	for i := 0; i < 5; i++ {
		h.svc.RunNow(context.Background())
	}

	snap := h.svc.Snapshot()
	assert.Len(t, snap.History, 3)
	assert.Equal(t, DefaultEvery, snap.Every)
	assert.False(t, snap.Running)
	for _, c := range snap.History {
		assert.Equal(t, "manual", c.Trigger)
		assert.NotEqual(t, uuid.Nil, c.ID)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, openSite())

	require.NoError(t, h.svc.Start(context.Background()))
	require.NoError(t, h.svc.Start(context.Background()))
	snap := h.svc.Snapshot()
	assert.True(t, snap.Running)
	assert.WithinDuration(t, time.Now().Add(DefaultEvery), snap.Next, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.svc.Stop(ctx)
	assert.False(t, h.svc.Snapshot().Running)
}

func TestComposeMessageUnknownDate(t *testing.T) {
	t.Parallel()
	msg := ComposeMessage([]slots.Summary{{Date: "  ", Count: 4}}, testURL)
	assert.True(t, strings.Contains(msg, "- (unknown date): 4 slots"))
}

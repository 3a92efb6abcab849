package slots

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbot/internal/browser/browsertest"
	logx "slotbot/pkg/logx"
)

const testURL = "https://booking.example/consulate"

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestProbe(log logx.Logger) *Probe {
	p := NewProbe(log)
	p.Sleep = noSleep
	return p
}

func newTestExtractor(log logx.Logger) *Extractor {
	x := NewExtractor(log)
	x.Sleep = noSleep
	return x
}

func TestAvailable(t *testing.T) {
	t.Parallel()
	assert.False(t, Available("...Немає вільних місць..."))
	assert.True(t, Available("5 slots open"))
	assert.True(t, Available(""))
}

func TestControlLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "12 March", controlLabel("  12 March selected "))
	assert.Equal(t, "12 March", controlLabel("12 March"))
}

func TestParseDayPage(t *testing.T) {
	t.Parallel()
	sum, err := parseDayPage(`<html><body><h2 id="heading-slot-date">середа, 12 березня</h2>
		<ul><li>09:00</li><li>09:30</li><li>10:00</li></ul></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, Summary{Date: "середа, 12 березня", Count: 3}, sum)
}

func TestParseDayPageWithoutHeading(t *testing.T) {
	t.Parallel()
	sum, err := parseDayPage(`<ul><li>09:00</li></ul>`)
	require.NoError(t, err)
	assert.Equal(t, Summary{Count: 1}, sum)
}

func TestProbeSentinel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		banner string
		want   bool
	}{
		{name: "sentinel present", banner: "На жаль, Немає вільних місць", want: false},
		{name: "sentinel absent", banner: "5 slots open", want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			site := &browsertest.Site{Banner: tt.banner}
			got, err := newTestProbe(logx.Nop()).Check(context.Background(), site, testURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, site.Navigations())
		})
	}
}

func TestProbeNavigationError(t *testing.T) {
	t.Parallel()
	site := &browsertest.Site{NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	_, err := newTestProbe(logx.Nop()).Check(context.Background(), site, testURL)
	assert.ErrorIs(t, err, ErrNavigation)
}

func TestProbeWaitsForRender(t *testing.T) {
	t.Parallel()
	var waited []time.Duration
	p := NewProbe(logx.Nop())
	p.RenderWait = 3 * time.Second
	p.Sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	_, err := p.Check(context.Background(), &browsertest.Site{}, testURL)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second}, waited)
}

func TestExtractSkipsDisabledAndDuplicates(t *testing.T) {
	t.Parallel()
	site := &browsertest.Site{Days: []browsertest.Day{
		{Label: "Mon", Heading: "понеділок", Slots: []string{"09:00", "09:30"}},
		{Label: "Tue", Disabled: true},
		{Label: "Tue", Disabled: true},
	}}

	got, err := newTestExtractor(logx.Nop()).Extract(context.Background(), site, testURL)

	require.NoError(t, err)
	assert.Equal(t, []Summary{{Date: "понеділок", Count: 2}}, got)
	assert.Equal(t, []string{"Mon"}, site.Visited())
}

func TestExtractVisitsEachLabelOnce(t *testing.T) {
	t.Parallel()
	site := &browsertest.Site{Days: []browsertest.Day{
		{Label: "Wed", Heading: "середа", Slots: []string{"10:00"}},
		{Label: "Thu", Heading: "четвер", Slots: []string{"11:00", "12:00", "13:00"}},
		{Label: "Wed", Heading: "середа", Slots: []string{"10:00"}},
	}}

	got, err := newTestExtractor(logx.Nop()).Extract(context.Background(), site, testURL)

	require.NoError(t, err)
	assert.Equal(t, []Summary{{Date: "середа", Count: 1}, {Date: "четвер", Count: 3}}, got)
	assert.Equal(t, []string{"Wed", "Thu"}, site.Visited())
}

func TestExtractNoEnabledControls(t *testing.T) {
	t.Parallel()
	site := &browsertest.Site{Days: []browsertest.Day{{Label: "Fri", Disabled: true}}}

	got, err := newTestExtractor(logx.Nop()).Extract(context.Background(), site, testURL)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, site.Navigations())
	assert.Zero(t, site.Clicks())
}

func TestExtractVanishedControlIsSkipped(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	site := &browsertest.Site{
		Days: []browsertest.Day{
			{Label: "Mon", Heading: "понеділок", Slots: []string{"09:00"}},
			{Label: "Tue", Heading: "вівторок", Slots: []string{"09:00"}},
		},
		Vanish: map[string]bool{"Tue": true},
	}

	got, err := newTestExtractor(logx.NewWriter(&buf, "debug")).Extract(context.Background(), site, testURL)

	require.NoError(t, err)
	assert.Equal(t, []Summary{{Date: "понеділок", Count: 1}}, got)
	assert.Contains(t, buf.String(), "date control vanished")
	assert.Contains(t, buf.String(), `"label":"Tue"`)
}

func TestExtractContentErrorAborts(t *testing.T) {
	t.Parallel()
	site := &browsertest.Site{
		Days:       []browsertest.Day{{Label: "Mon", Slots: []string{"09:00"}}},
		ContentErr: errors.New("target closed"),
	}

	_, err := newTestExtractor(logx.Nop()).Extract(context.Background(), site, testURL)
	assert.ErrorIs(t, err, ErrNavigation)
}

func TestExtractIsRepeatable(t *testing.T) {
	t.Parallel()
	site := &browsertest.Site{Days: []browsertest.Day{
		{Label: "Mon", Heading: "понеділок", Slots: []string{"09:00"}},
		{Label: "Tue", Heading: "вівторок", Slots: []string{"09:00", "10:00"}},
	}}
	x := newTestExtractor(logx.Nop())

	first, err := x.Extract(context.Background(), site, testURL)
	require.NoError(t, err)
	site.Reset()
	second, err := x.Extract(context.Background(), site, testURL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractHonorsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	x := NewExtractor(logx.Nop())
	x.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := x.Extract(ctx, &browsertest.Site{}, testURL)
	assert.ErrorIs(t, err, context.Canceled)
}

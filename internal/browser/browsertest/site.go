// Package browsertest provides an in-memory booking page that behaves like the
// real one: clicking a date control regenerates the page, so every element
// handle resolved before the click goes stale.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"slotbot/internal/browser"
)

var ErrStaleElement = errors.New("stale element reference")

// Day is one date control on the page.
type Day struct {
	Label    string
	Disabled bool
	Heading  string
	Slots    []string
}

// Site is a fake single-page booking UI implementing browser.Session.
type Site struct {
	mu sync.Mutex

	Days []Day
	// Banner is rendered as plain body text on every page.
	Banner string
	// Vanish lists labels whose controls disappear after the first query.
	Vanish map[string]bool

	NavigateErr error
	ContentErr  error

	current string // label of the selected day, "" for the landing page
	gen     int
	closed  bool

	navigations int
	queries     int
	clicks      int
	visited     []string
}

func (s *Site) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	s.navigations++
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.current = ""
	s.gen++
	return nil
}

func (s *Site) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ContentErr != nil {
		return "", s.ContentErr
	}
	return s.renderLocked(), nil
}

func (s *Site) Query(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if selector != `[name="day"]` {
		return nil, nil
	}
	out := make([]browser.Element, 0, len(s.Days))
	for _, d := range s.visibleLocked() {
		out = append(out, &element{site: s, gen: s.gen, day: d})
	}
	return out, nil
}

func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	s.closed = true
	return nil
}

// Reset reopens the site for another session, keeping its fixture data.
func (s *Site) Reset() {
	s.mu.Lock()
	s.closed = false
	s.current = ""
	s.queries = 0
	s.mu.Unlock()
}

func (s *Site) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Site) Navigations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigations
}

func (s *Site) Clicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks
}

// Visited returns the labels clicked so far, in order.
func (s *Site) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

func (s *Site) visibleLocked() []Day {
	out := make([]Day, 0, len(s.Days))
	for _, d := range s.Days {
		if s.queries > 1 && s.Vanish[d.Label] {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (s *Site) renderLocked() string {
	var b strings.Builder
	b.WriteString("<html><head><script>var x = 1;</script></head><body>")
	if s.Banner != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(s.Banner))
	}
	b.WriteString(`<div class="days">`)
	for _, d := range s.visibleLocked() {
		label := d.Label
		if d.Label == s.current {
			label += " selected"
		}
		disabled := ""
		if d.Disabled {
			disabled = " disabled"
		}
		fmt.Fprintf(&b, `<button name="day" aria-label="%s"%s>%s</button>`, html.EscapeString(label), disabled, html.EscapeString(d.Label))
	}
	b.WriteString("</div>")
	if s.current != "" {
		for _, d := range s.Days {
			if d.Label != s.current {
				continue
			}
			fmt.Fprintf(&b, `<h2 id="heading-slot-date">%s</h2><ul>`, html.EscapeString(d.Heading))
			for _, slot := range d.Slots {
				fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(slot))
			}
			b.WriteString("</ul>")
			break
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}

type element struct {
	site *Site
	gen  int
	day  Day
}

func (e *element) Attribute(name string) (string, error) {
	s := e.site
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.gen != s.gen {
		return "", ErrStaleElement
	}
	switch name {
	case "aria-label":
		if e.day.Label == s.current {
			return e.day.Label + " selected", nil
		}
		return e.day.Label, nil
	case "name":
		return "day", nil
	default:
		return "", nil
	}
}

func (e *element) Disabled() (bool, error) {
	s := e.site
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.gen != s.gen {
		return false, ErrStaleElement
	}
	return e.day.Disabled, nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := e.site
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.gen != s.gen {
		return ErrStaleElement
	}
	// Activation regenerates the whole page.
	s.current = e.day.Label
	s.gen++
	s.clicks++
	s.visited = append(s.visited, e.day.Label)
	return nil
}

// Factory hands out the same Site for every acquisition and counts them.
type Factory struct {
	mu       sync.Mutex
	Site     *Site
	Err      error
	acquired int
	// Hook runs on every Acquire before the session is returned.
	Hook func()
}

func (f *Factory) Acquire(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.acquired++
	hook := f.Hook
	err := f.Err
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", browser.ErrSessionUnavailable, err)
	}
	f.Site.Reset()
	return f.Site, nil
}

func (f *Factory) Acquired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired
}

package browser

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	logx "slotbot/pkg/logx"
)

const (
	DefaultHost       = "localhost"
	DefaultPort       = 9222
	DefaultNavTimeout = 60 * time.Second
)

// Config describes where the remote Chrome listens for CDP connections. The
// port must serve the DevTools protocol (chrome --remote-debugging-port), not
// a Selenium/WebDriver endpoint.
type Config struct {
	Host string
	Port int

	// NavTimeout bounds a single navigation or click. The fixed render waits
	// done by callers come on top of it.
	NavTimeout time.Duration
}

// Endpoint returns the CDP endpoint URL, e.g. "http://localhost:9222".
func (c Config) Endpoint() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port <= 0 {
		port = DefaultPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// RemoteFactory connects to a remote Chrome over CDP through the playwright
// driver. The driver process is started on first use and shared; browser
// connections are not.
type RemoteFactory struct {
	cfg Config
	log logx.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

func NewRemoteFactory(cfg Config, log logx.Logger) *RemoteFactory {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = DefaultNavTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RemoteFactory{cfg: cfg, log: log}
}

func (f *RemoteFactory) driver() (*playwright.Playwright, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pw != nil {
		return f.pw, nil
	}

	// Browsers live on the remote host; only the driver is needed locally.
	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("install playwright driver: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}
	f.pw = pw
	return pw, nil
}

// Acquire opens a fresh connection and page. Failures are wrapped with
// ErrSessionUnavailable.
func (f *RemoteFactory) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := f.driver()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	endpoint := f.cfg.Endpoint()
	timeout := float64(f.cfg.NavTimeout.Milliseconds())
	start := time.Now()

	b, err := pw.Chromium.ConnectOverCDP(endpoint, playwright.BrowserTypeConnectOverCDPOptions{Timeout: &timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrSessionUnavailable, endpoint, err)
	}
	bctx, err := b.NewContext()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("%w: new context: %v", ErrSessionUnavailable, err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		return nil, fmt.Errorf("%w: new page: %v", ErrSessionUnavailable, err)
	}
	page.SetDefaultTimeout(timeout)

	f.log.Debug("session opened", logx.String("endpoint", endpoint), logx.Duration("took", time.Since(start)))
	return &remoteSession{
		log:     f.log.With(logx.String("endpoint", endpoint)),
		browser: b,
		context: bctx,
		page:    page,
		timeout: timeout,
		opened:  start,
	}, nil
}

// Close stops the shared driver process. Open sessions must be closed first.
func (f *RemoteFactory) Close() error {
	f.mu.Lock()
	pw := f.pw
	f.pw = nil
	f.mu.Unlock()
	if pw == nil {
		return nil
	}
	return pw.Stop()
}

type remoteSession struct {
	log logx.Logger

	mu      sync.Mutex
	closed  bool
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout float64
	opened  time.Time
}

func (s *remoteSession) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *remoteSession) Navigate(ctx context.Context, url string) error {
	if err := s.live(ctx); err != nil {
		return err
	}
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{Timeout: &s.timeout}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (s *remoteSession) Content(ctx context.Context) (string, error) {
	if err := s.live(ctx); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

func (s *remoteSession) Query(ctx context.Context, selector string) ([]Element, error) {
	if err := s.live(ctx); err != nil {
		return nil, err
	}
	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &remoteElement{h: h, timeout: s.timeout})
	}
	return out, nil
}

func (s *remoteSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.closed = true
	s.mu.Unlock()

	// Close everything; the first error is reported but never stops cleanup.
	var first error
	for _, fn := range []func() error{
		func() error { return s.page.Close() },
		func() error { return s.context.Close() },
		func() error { return s.browser.Close() },
	} {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		s.log.Warn("session close failed", logx.Err(first))
	} else {
		s.log.Debug("session closed", logx.Duration("lifetime", time.Since(s.opened)))
	}
	return first
}

type remoteElement struct {
	h       playwright.ElementHandle
	timeout float64
}

func (e *remoteElement) Attribute(name string) (string, error) {
	return e.h.GetAttribute(name)
}

// Disabled reports whether the control carries the disabled attribute. Only
// the attribute counts; aria-disabled and disabled fieldset ancestors do not.
func (e *remoteElement) Disabled() (bool, error) {
	v, err := e.h.Evaluate(hasDisabledAttrJS)
	if err != nil {
		return false, fmt.Errorf("read disabled attribute: %w", err)
	}
	return evalBool(v)
}

const hasDisabledAttrJS = `e => e.hasAttribute("disabled")`

func evalBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected evaluate result %T", v)
	}
	return b, nil
}

func (e *remoteElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.h.Click(playwright.ElementHandleClickOptions{Timeout: &e.timeout}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

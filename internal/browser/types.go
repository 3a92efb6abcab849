// Package browser owns remote browser connections.
//
// A Session is one connection to a remote Chrome plus one page. Sessions are
// never cached: each Acquire opens a new connection and Close tears it down.
// Use wraps both so release happens on every exit path.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrSessionUnavailable means the remote browser could not be reached or
	// failed to initialize.
	ErrSessionUnavailable = errors.New("browser session unavailable")
	ErrSessionClosed      = errors.New("browser session closed")
)

// Session drives one page of a remote browser.
//
// A Session is not safe for concurrent use: at most one navigation may be in
// flight at a time.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Content returns the current serialized DOM (after client-side rendering).
	Content(ctx context.Context) (string, error)
	// Query resolves all elements matching a CSS selector. The returned handles
	// are single-use: any navigation or click may invalidate them.
	Query(ctx context.Context, selector string) ([]Element, error)
	Close() error
}

// Element is an ephemeral handle to a DOM element.
type Element interface {
	Attribute(name string) (string, error)
	Disabled() (bool, error)
	Click(ctx context.Context) error
}

// Factory opens sessions.
type Factory interface {
	Acquire(ctx context.Context) (Session, error)
}

// Use acquires a session, runs fn and always closes the session afterwards,
// including when fn fails or panics. Close errors never mask fn's result;
// sessions report them through their own logger.
func Use(ctx context.Context, f Factory, fn func(Session) error) error {
	s, err := f.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

package detect

import (
	"context"
	"errors"
)

// NetworkEvent is one request or response observed on a page
type NetworkEvent struct {
	URL    string
	Source Source
}

// SessionOptions configures a new browser session
type SessionOptions struct {
	Headless  bool
	UserAgent string
}

// Session is one isolated browser context holding a single page.
// A Session belongs to exactly one detection run.
type Session interface {
	// Listen subscribes fn to the page's outgoing requests and incoming
	// responses until Close. It must be called before Navigate.
	Listen(fn func(NetworkEvent))
	// Navigate loads url and returns once the document is parsed.
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Close tears down the page, its context and the browser process.
	Close() error
}

// Engine is the browser automation capability. It is created once at
// startup and shared by all runs; it must be safe for concurrent use.
type Engine interface {
	Name() string
	// Available returns nil when sessions can be created, or the reason
	// they cannot.
	Available() error
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

type unavailableEngine struct {
	name   string
	reason error
}

// Unavailable returns an Engine that refuses every session with reason
func Unavailable(name string, reason error) Engine {
	if reason == nil {
		reason = errors.New("not initialized")
	}
	return &unavailableEngine{name: name, reason: reason}
}

func (e *unavailableEngine) Name() string { return e.name }

func (e *unavailableEngine) Available() error { return e.reason }

func (e *unavailableEngine) NewSession(context.Context, SessionOptions) (Session, error) {
	return nil, e.reason
}

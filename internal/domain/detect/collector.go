package detect

import (
	"strings"
	"sync"
	"time"
)

// streamMarker is the substring that marks a URL as an HLS playlist
const streamMarker = ".m3u8"

// Matches reports whether url looks like an HLS playlist
func Matches(url string) bool {
	return strings.Contains(url, streamMarker)
}

// Collector is an append-only, deduplicating record of matching URLs.
// It is safe for concurrent use by session event callbacks.
type Collector struct {
	mu     sync.Mutex
	start  time.Time
	seen   map[string]struct{}
	items  []ObservedURL
	sealed bool
	notify func(ObservedURL)
}

// NewCollector creates a collector whose offsets are measured from start.
// notify may be nil.
func NewCollector(start time.Time, notify func(ObservedURL)) *Collector {
	return &Collector{
		start:  start,
		seen:   make(map[string]struct{}),
		notify: notify,
	}
}

// Observe records ev if it matches and has not been seen before.
// It reports whether a new candidate was added.
func (c *Collector) Observe(ev NetworkEvent) bool {
	if !Matches(ev.URL) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return false
	}
	if _, ok := c.seen[ev.URL]; ok {
		return false
	}

	obs := ObservedURL{
		URL:    ev.URL,
		Source: ev.Source,
		Offset: time.Since(c.start),
	}
	c.seen[ev.URL] = struct{}{}
	c.items = append(c.items, obs)

	if c.notify != nil {
		c.notify(obs)
	}
	return true
}

// Len returns the number of candidates recorded so far
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Snapshot returns a copy of the candidates in discovery order
func (c *Collector) Snapshot() []ObservedURL {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ObservedURL, len(c.items))
	copy(out, c.items)
	return out
}

// Seal stops recording and returns the final discovery-ordered list.
// Events that arrive after Seal are dropped.
func (c *Collector) Seal() []ObservedURL {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
	return c.Snapshot()
}

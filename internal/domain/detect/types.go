package detect

import (
	"time"
)

// Default timing budgets for a detection run
const (
	DefaultTimeout        = 15 * time.Second
	DefaultSettle         = 5 * time.Second
	DefaultTriggerTimeout = 1 * time.Second
	DefaultFallbackWait   = 2 * time.Second
)

// DefaultUserAgent is the desktop Chrome identity presented to target pages
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source tells which side of an exchange a URL was first seen on
type Source int

const (
	SourceRequest Source = iota
	SourceResponse
)

// String returns the wire name of the source
func (s Source) String() string {
	switch s {
	case SourceRequest:
		return "request"
	case SourceResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Request describes one detection run. It is copied into the run, so later
// changes by the caller have no effect.
type Request struct {
	TargetURL              string
	Timeout                time.Duration
	Settle                 time.Duration
	AttemptPlaybackTrigger bool
	Headless               bool

	// OnCandidate, when set, is called once for every newly recorded
	// candidate, in discovery order, from the collector's goroutine.
	OnCandidate func(ObservedURL)
}

// NewRequest returns a request for targetURL with default budgets
func NewRequest(targetURL string) Request {
	return Request{
		TargetURL:              targetURL,
		Timeout:                DefaultTimeout,
		Settle:                 DefaultSettle,
		AttemptPlaybackTrigger: true,
		Headless:               true,
	}
}

// ObservedURL is a matching URL seen on the wire
type ObservedURL struct {
	URL    string
	Source Source
	Offset time.Duration
}

// OffsetMs returns the time since run start in milliseconds
func (o ObservedURL) OffsetMs() int64 {
	return o.Offset.Milliseconds()
}

// Diagnostics records how a run degraded. Informational only.
type Diagnostics struct {
	NavigationError string `json:"navigationError,omitempty"`
	TriggeredBy     string `json:"triggeredBy,omitempty"`
	FallbackClicked bool   `json:"fallbackClicked"`
}

// Result is the outcome of a detection run
type Result struct {
	RunID       string
	Succeeded   bool
	Candidates  []ObservedURL
	Primary     *ObservedURL
	Elapsed     time.Duration
	Diagnostics Diagnostics
}

// Count returns the number of candidates
func (r *Result) Count() int {
	return len(r.Candidates)
}

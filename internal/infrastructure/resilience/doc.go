/*
Package resilience provides circuit breaker implementation for graceful degradation.

# Overview

The stream relay keeps one breaker per upstream host in a Group, so a dead
CDN fails fast instead of tying up relay connections.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Automatic state transitions
- Pluggable failure classification (IsFailure)
- Per-key breaker groups
- State change callbacks for logging

# Usage

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.String("host", name), zap.Stringer("to", to))
		},
	})

	resp, err := resilience.Call(breakers.Get(host), func() (*resty.Response, error) {
		return req.Get(target)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

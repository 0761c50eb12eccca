package detect

import (
	"errors"
)

var (
	// ErrEngineUnavailable means no browser automation capability is present
	ErrEngineUnavailable = errors.New("browser engine unavailable")
	// ErrSessionAcquisition means a browser session could not be created
	ErrSessionAcquisition = errors.New("browser session acquisition failed")
	// ErrInvalidRequest means the request has no target URL
	ErrInvalidRequest = errors.New("invalid detection request")
	// ErrBusy means every session slot stayed occupied past the queue timeout
	ErrBusy = errors.New("detector at capacity")
)

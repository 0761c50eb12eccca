package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/config"
	"github.com/GriffinCanCode/StreamSniffer/internal/shared/utils"
)

var errMissingURL = errors.New("missing required parameter: url")

// ParseDetectRequest builds a detection request from query parameters.
// Unparsable or non-positive numbers fall back to the configured defaults
// and are capped at the configured maximums.
func ParseDetectRequest(c *gin.Context, cfg config.DetectConfig) (detect.Request, error) {
	raw := c.Query("url")
	if raw == "" {
		return detect.Request{}, errMissingURL
	}
	if _, err := utils.ValidateURL(raw, true); err != nil {
		return detect.Request{}, err
	}

	req := detect.NewRequest(raw)
	req.Timeout = durationParam(c.Query("timeout"), cfg.Timeout(), cfg.MaxTimeout())

	settle := c.Query("settle")
	if settle == "" {
		settle = c.Query("wait")
	}
	req.Settle = durationParam(settle, cfg.Settle(), cfg.MaxSettle())

	req.AttemptPlaybackTrigger = boolParam(c.Query("trigger"), true)
	req.Headless = boolParam(c.Query("headless"), true)
	return req, nil
}

// durationParam parses a millisecond value
func durationParam(raw string, def, limit time.Duration) time.Duration {
	d := def
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		d = time.Duration(ms) * time.Millisecond
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}

func boolParam(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

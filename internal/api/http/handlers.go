package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/config"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/resilience"
	httpprovider "github.com/GriffinCanCode/StreamSniffer/internal/providers/http"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequest    = "invalid_request"
	CodeEngineUnavailable = "engine_unavailable"
	CodeBusy              = "busy"
	CodeSessionFailed     = "session_failed"
	CodeCancelled         = "cancelled"
)

// Detector runs detections
type Detector interface {
	Detect(ctx context.Context, req detect.Request) (*detect.Result, error)
	Stats() detect.Stats
	Engine() detect.Engine
}

// Relay serves proxied stream resources
type Relay interface {
	Serve(ctx context.Context, w http.ResponseWriter, req httpprovider.RelayRequest) error
}

// UpstreamStats reports per-host breaker states of the relay client
type UpstreamStats interface {
	BreakerStates() map[string]resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	detector   Detector
	relay      Relay
	upstream   UpstreamStats
	detectCfg  config.DetectConfig
	playerHTML string
	metrics    *monitoring.Metrics
	logger     *logging.Logger
	startTime  time.Time
}

// Options carries the optional collaborators of Handlers
type Options struct {
	Upstream   UpstreamStats
	PlayerHTML string
	Metrics    *monitoring.Metrics
	Logger     *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(detector Detector, relay Relay, detectCfg config.DetectConfig, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		detector:   detector,
		relay:      relay,
		upstream:   opts.Upstream,
		detectCfg:  detectCfg,
		playerHTML: opts.PlayerHTML,
		metrics:    opts.Metrics,
		logger:     logger.Named("api"),
		startTime:  time.Now(),
	}
}

// Detect handles GET /api/detect
func (h *Handlers) Detect(c *gin.Context) {
	req, err := ParseDetectRequest(c, h.detectCfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}

	result, err := h.detector.Detect(c.Request.Context(), req)
	if err != nil {
		status, code := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("Detection failed",
				zap.String("url", req.TargetURL),
				zap.String("code", code),
				zap.Error(err),
			)
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, NewDetectResponse(result))
}

// StatusFor maps a detection error to an HTTP status and error code
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, detect.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, detect.ErrEngineUnavailable):
		return http.StatusServiceUnavailable, CodeEngineUnavailable
	case errors.Is(err, detect.ErrBusy):
		return http.StatusServiceUnavailable, CodeBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; the status is mostly for the access log
		return 499, CodeCancelled
	default:
		return http.StatusInternalServerError, CodeSessionFailed
	}
}

// Proxy handles GET /api/proxy and /proxy
func (h *Handlers) Proxy(c *gin.Context) {
	req := httpprovider.RelayRequest{
		URL:     c.Query("url"),
		Referer: c.Query("referer"),
		Rewrite: boolParam(c.Query("rewrite"), false),
		Range:   c.GetHeader("Range"),
	}

	if err := h.relay.Serve(c.Request.Context(), c.Writer, req); err != nil {
		_ = c.Error(err)
	}
}

// Health handles GET /api/health
func (h *Handlers) Health(c *gin.Context) {
	engine := h.detector.Engine()
	engineInfo := gin.H{
		"name":      engine.Name(),
		"available": true,
	}
	if err := engine.Available(); err != nil {
		engineInfo["available"] = false
		engineInfo["reason"] = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"engine":   engineInfo,
		"sessions": h.detector.Stats(),
		"uptime":   time.Since(h.startTime).Seconds(),
	})
}

// Metrics handles GET /api/metrics with a JSON summary
func (h *Handlers) Metrics(c *gin.Context) {
	body := gin.H{
		"sessions": h.detector.Stats(),
	}
	if h.metrics != nil {
		body["totals"] = h.metrics.Snapshot()
		body["uptime"] = h.metrics.Uptime().Seconds()
	}
	if h.upstream != nil {
		states := make(map[string]string)
		for host, state := range h.upstream.BreakerStates() {
			states[host] = state.String()
		}
		body["upstreams"] = states
	}
	c.JSON(http.StatusOK, body)
}

// Player serves the bundled player page
func (h *Handlers) Player(c *gin.Context) {
	if h.playerHTML == "" {
		h.NotFound(c)
		return
	}
	data, err := os.ReadFile(h.playerHTML)
	if errors.Is(err, os.ErrNotExist) {
		h.NotFound(c)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read player page", zap.String("path", h.playerHTML), zap.Error(err))
		c.String(http.StatusInternalServerError, "Error loading page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// NotFound handles unknown routes
func (h *Handlers) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
}

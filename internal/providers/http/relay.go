package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StreamSniffer/internal/providers/http/client"
	"github.com/GriffinCanCode/StreamSniffer/internal/shared/utils"
)

// sniffLen is how many leading bytes are inspected for type detection
const sniffLen = 3072

var (
	// ErrMissingURL means no upstream URL was supplied
	ErrMissingURL = utils.ErrURLRequired
	// ErrInvalidURL means the upstream URL is not an absolute http(s) URL
	ErrInvalidURL = utils.ErrURLInvalid
	// ErrInsecureURL means a plain http upstream was refused
	ErrInsecureURL = utils.ErrURLInsecure
)

// RelayConfig configures the stream relay
type RelayConfig struct {
	AllowInsecure    bool
	UserAgent        string
	MaxPlaylistBytes int64
	ProxyPath        string
}

// DefaultRelayConfig returns relay defaults
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		UserAgent:        DefaultUserAgent,
		MaxPlaylistBytes: 4 << 20,
		ProxyPath:        "/api/proxy",
	}
}

// RelayRequest is one client request to relay
type RelayRequest struct {
	URL     string
	Referer string
	Rewrite bool
	// Range is forwarded so players can seek inside segments
	Range string
}

// Relay fetches a stream resource with browser-like headers and copies it
// to the client with permissive CORS headers. It holds no per-request state.
type Relay struct {
	client  *client.Client
	cfg     RelayConfig
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewRelay creates a relay. logger and metrics may be nil.
func NewRelay(c *client.Client, cfg RelayConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Relay {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ProxyPath == "" {
		cfg.ProxyPath = DefaultRelayConfig().ProxyPath
	}
	if cfg.MaxPlaylistBytes <= 0 {
		cfg.MaxPlaylistBytes = DefaultRelayConfig().MaxPlaylistBytes
	}
	return &Relay{
		client:  c,
		cfg:     cfg,
		logger:  logger.Named("relay"),
		metrics: metrics,
	}
}

// Validate parses raw as an upstream URL the relay is allowed to fetch
func (r *Relay) Validate(raw string) (*url.URL, error) {
	return utils.ValidateURL(raw, r.cfg.AllowInsecure)
}

// SetCORS writes the headers that let any page consume relayed media
func SetCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
}

// Serve relays req to w. It writes every response itself, errors included,
// and returns the error for logging.
func (r *Relay) Serve(ctx context.Context, w http.ResponseWriter, req RelayRequest) error {
	SetCORS(w.Header())

	target, err := r.Validate(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return err
	}

	headers := UpstreamHeaders(target, req.Referer, r.cfg.UserAgent)
	if req.Range != "" {
		headers["Range"] = req.Range
	}

	resp, err := r.client.Stream(ctx, target, headers)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, client.ErrUpstreamUnavailable) {
			status = http.StatusServiceUnavailable
		}
		r.record(strconv.Itoa(status), 0)
		writeError(w, status, err)
		r.logger.Warn("Upstream request failed", zap.String("url", target.String()), zap.Error(err))
		return fmt.Errorf("relay %s: %w", target.Host, err)
	}
	body := resp.RawBody()
	defer body.Close()

	// Relative playlist entries resolve against the post-redirect URL
	final := target
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL
	}

	br := bufio.NewReaderSize(body, sniffLen)
	head, _ := br.Peek(sniffLen)

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" && len(head) > 0 {
		contentType = mimetype.Detect(head).String()
	}

	status := resp.StatusCode()
	if req.Rewrite && status < 300 && IsPlaylist(contentType, final, head) {
		return r.serveRewritten(w, br, status, contentType, final, req.Referer)
	}

	out := w.Header()
	if contentType != "" {
		out.Set("Content-Type", contentType)
	}
	for _, k := range []string{"Content-Length", "Content-Range", "Accept-Ranges", "Cache-Control"} {
		if v := resp.Header().Get(k); v != "" {
			out.Set(k, v)
		}
	}
	w.WriteHeader(status)

	n, err := io.Copy(w, br)
	r.record(strconv.Itoa(status), n)
	if err != nil && ctx.Err() == nil {
		r.logger.Debug("Relay copy interrupted", zap.String("url", target.String()), zap.Error(err))
	}
	return nil
}

func (r *Relay) serveRewritten(w http.ResponseWriter, body io.Reader, status int, contentType string, base *url.URL, referer string) error {
	data, err := io.ReadAll(io.LimitReader(body, r.cfg.MaxPlaylistBytes+1))
	if err != nil {
		r.record(strconv.Itoa(http.StatusInternalServerError), 0)
		writeError(w, http.StatusInternalServerError, err)
		return fmt.Errorf("read playlist: %w", err)
	}

	if contentType == "" || contentType == "text/plain; charset=utf-8" {
		contentType = "application/vnd.apple.mpegurl"
	}
	w.Header().Set("Content-Type", contentType)

	// Oversized playlists are passed through unmodified
	if int64(len(data)) > r.cfg.MaxPlaylistBytes {
		w.WriteHeader(status)
		n, _ := w.Write(data)
		m, _ := io.Copy(w, body)
		r.record(strconv.Itoa(status), int64(n)+m)
		return nil
	}

	rw := Rewriter{ProxyPath: r.cfg.ProxyPath, Referer: referer}
	out := rw.Rewrite(data, base)

	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(status)
	n, _ := w.Write(out)
	r.record(strconv.Itoa(status), int64(n))
	return nil
}

func (r *Relay) record(status string, n int64) {
	if r.metrics != nil {
		r.metrics.RecordProxy(status, n)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

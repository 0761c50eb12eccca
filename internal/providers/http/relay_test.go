package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StreamSniffer/internal/providers/http/client"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestRelay(t *testing.T, insecure bool) (*Relay, *monitoring.Metrics) {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.RetryMax = 0
	cfg.RequestsPerSecond = 0

	metrics := monitoring.NewMetrics()
	relayCfg := DefaultRelayConfig()
	relayCfg.AllowInsecure = insecure
	return NewRelay(client.NewClient(cfg, logging.NewNop()), relayCfg, logging.NewNop(), metrics), metrics
}

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hls/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow/index.m3u8\n")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ua":      r.Header.Get("User-Agent"),
			"accept":  r.Header.Get("Accept"),
			"referer": r.Header.Get("Referer"),
			"origin":  r.Header.Get("Origin"),
			"range":   r.Header.Get("Range"),
		})
	})
	mux.HandleFunc("/seg.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func serve(t *testing.T, relay *Relay, req RelayRequest) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	_ = relay.Serve(context.Background(), w, req)
	return w
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestRelaySendsBrowserHeaders(t *testing.T) {
	srv := upstream(t)
	relay, _ := newTestRelay(t, true)
	u, _ := url.Parse(srv.URL)

	tests := []struct {
		name        string
		referer     string
		wantOrigin  string
		wantReferer string
	}{
		{
			name:        "origin of stream",
			wantOrigin:  "http://" + u.Host,
			wantReferer: "http://" + u.Host + "/",
		},
		{
			name:        "caller referer",
			referer:     "https://embed.example.com/watch/1",
			wantOrigin:  "https://embed.example.com",
			wantReferer: "https://embed.example.com/",
		},
		{
			name:        "invalid referer ignored",
			referer:     "not a url",
			wantOrigin:  "http://" + u.Host,
			wantReferer: "http://" + u.Host + "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, relay, RelayRequest{URL: srv.URL + "/echo", Referer: tt.referer, Range: "bytes=0-99"})
			require.Equal(t, http.StatusOK, w.Code)
			assertCORS(t, w)

			var got map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, DefaultUserAgent, got["ua"])
			assert.Equal(t, "*/*", got["accept"])
			assert.Equal(t, tt.wantOrigin, got["origin"])
			assert.Equal(t, tt.wantReferer, got["referer"])
			assert.Equal(t, "bytes=0-99", got["range"])
		})
	}
}

func TestRelayStreamsBody(t *testing.T) {
	srv := upstream(t)
	relay, metrics := newTestRelay(t, true)

	w := serve(t, relay, RelayRequest{URL: srv.URL + "/hls/master.m3u8"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "low/index.m3u8")
	assert.NotContains(t, w.Body.String(), "/api/proxy")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProxyRequests.WithLabelValues("200")))
}

func TestRelaySniffsMissingContentType(t *testing.T) {
	srv := upstream(t)
	relay, _ := newTestRelay(t, true)

	w := serve(t, relay, RelayRequest{URL: srv.URL + "/seg.bin"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, w.Body.Bytes())
}

func TestRelayRewritesPlaylist(t *testing.T) {
	srv := upstream(t)
	relay, _ := newTestRelay(t, true)

	w := serve(t, relay, RelayRequest{URL: srv.URL + "/hls/master.m3u8", Rewrite: true})

	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#EXTM3U", lines[0])

	want := "/api/proxy?" + url.Values{
		"url":     {srv.URL + "/hls/low/index.m3u8"},
		"rewrite": {"1"},
	}.Encode()
	assert.Equal(t, want, lines[2])
	assert.Equal(t, fmt.Sprint(w.Body.Len()), w.Header().Get("Content-Length"))
}

func TestRelayRelaysUpstreamStatus(t *testing.T) {
	srv := upstream(t)
	relay, _ := newTestRelay(t, true)

	w := serve(t, relay, RelayRequest{URL: srv.URL + "/missing", Rewrite: true})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "gone")
	assertCORS(t, w)
}

func TestRelayRejectsBadURLs(t *testing.T) {
	relay, _ := newTestRelay(t, false)

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"missing", "", ErrMissingURL},
		{"relative", "/hls/master.m3u8", ErrInvalidURL},
		{"unsupported scheme", "ftp://cdn.example.com/a.m3u8", ErrInvalidURL},
		{"plain http", "http://cdn.example.com/a.m3u8", ErrInsecureURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			err := relay.Serve(context.Background(), w, RelayRequest{URL: tt.url})

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assertCORS(t, w)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantErr.Error(), body["error"])
		})
	}
}

func TestRelayUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	relay, metrics := newTestRelay(t, true)
	w := httptest.NewRecorder()
	err := relay.Serve(context.Background(), w, RelayRequest{URL: dead + "/a.m3u8"})

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assertCORS(t, w)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProxyRequests.WithLabelValues("500")))
}

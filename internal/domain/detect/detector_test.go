package detect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/tracing"
)

const embedURL = "https://player.example.com/embed/42"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastSettings() Settings {
	s := DefaultSettings()
	s.TriggerTimeout = 20 * time.Millisecond
	s.FallbackWait = 10 * time.Millisecond
	s.QueueTimeout = 50 * time.Millisecond
	return s
}

func fastRequest(url string) Request {
	r := NewRequest(url)
	r.Timeout = 200 * time.Millisecond
	r.Settle = 10 * time.Millisecond
	return r
}

func TestDetectRanksMasterFirst(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{pages: map[string][]NetworkEvent{
			embedURL: {
				req("https://cdn.example.com/hls/chunk_720.m3u8"),
				req("https://cdn.example.com/app.js"),
				resp("https://cdn.example.com/hls/master.m3u8"),
			},
		}}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	result, err := d.Detect(context.Background(), fastRequest(embedURL))
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "https://cdn.example.com/hls/master.m3u8", result.Candidates[0].URL)
	assert.Equal(t, SourceResponse, result.Candidates[0].Source)
	assert.Equal(t, "https://cdn.example.com/hls/chunk_720.m3u8", result.Candidates[1].URL)
	assert.Equal(t, SourceRequest, result.Candidates[1].Source)

	require.NotNil(t, result.Primary)
	assert.Equal(t, result.Candidates[0], *result.Primary)
	assert.True(t, result.Succeeded)
	assert.Equal(t, 2, result.Count())
	assert.GreaterOrEqual(t, result.Elapsed, time.Duration(0))
	assert.NotEmpty(t, result.RunID)

	sessions := engine.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int32(1), sessions[0].closed.Load())
	assert.Equal(t, 0, d.Stats().Active)
}

func TestDetectDeduplicatesByURL(t *testing.T) {
	const (
		stream = "https://cdn.example.com/live/index.m3u8?token=abc"
		delay  = 15 * time.Millisecond
	)
	// One request on load, then the same URL twice as a response once the
	// player starts
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{
			pages: map[string][]NetworkEvent{embedURL: {req(stream)}},
			clickable: map[string][]NetworkEvent{
				".jw-icon-display": {resp(stream), resp(stream)},
			},
			clickDelay: delay,
		}
	})
	settings := fastSettings()
	settings.TriggerTimeout = 200 * time.Millisecond
	d := NewDetector(engine, settings, nil, nil)

	var mu sync.Mutex
	var notified []ObservedURL
	r := fastRequest(embedURL)
	r.OnCandidate = func(o ObservedURL) {
		mu.Lock()
		notified = append(notified, o)
		mu.Unlock()
	}

	result, err := d.Detect(context.Background(), r)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	got := result.Candidates[0]
	assert.Equal(t, stream, got.URL)
	assert.Equal(t, SourceRequest, got.Source)
	assert.Less(t, got.Offset, delay, "offset must come from the load-time request")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notified, 1)
	assert.Equal(t, notified[0], got)
	assert.Equal(t, ".jw-icon-display", result.Diagnostics.TriggeredBy)
}

func TestDetectNavigationTimeoutDegrades(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{hangNavigate: true}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	r := fastRequest(embedURL)
	r.Timeout = 20 * time.Millisecond

	result, err := d.Detect(context.Background(), r)
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Nil(t, result.Primary)
	assert.Empty(t, result.Candidates)
	assert.Contains(t, result.Diagnostics.NavigationError, context.DeadlineExceeded.Error())

	sessions := engine.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int32(1), sessions[0].closed.Load())
	assert.Contains(t, sessions[0].Clicks(), FallbackSelector, "fallback click is still attempted")
}

func TestDetectNavigationErrorStillTriggers(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{
			navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED"),
			clickable: map[string][]NetworkEvent{
				".jw-icon-display": {req("https://cdn.example.com/a.m3u8")},
			},
		}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	result, err := d.Detect(context.Background(), fastRequest(embedURL))
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", result.Diagnostics.NavigationError)
	assert.Equal(t, ".jw-icon-display", result.Diagnostics.TriggeredBy)
}

func TestDetectEngineUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		engine Engine
	}{
		{
			name:   "unavailable variant",
			engine: Unavailable("rod", errors.New("no browser binary found")),
		},
		{
			name: "engine reporting unavailable",
			engine: &fakeEngine{
				availErr: errors.New("disabled"),
				factory:  func() *fakeSession { return &fakeSession{} },
			},
		},
		{
			name:   "nil engine",
			engine: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.engine, fastSettings(), nil, nil)

			result, err := d.Detect(context.Background(), fastRequest(embedURL))
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrEngineUnavailable))

			if fe, ok := tt.engine.(*fakeEngine); ok {
				assert.Equal(t, int32(0), fe.created.Load(), "no session may be created")
			}
		})
	}
}

func TestDetectSessionAcquisitionFailure(t *testing.T) {
	engine := newFakeEngine(nil)
	engine.newErr = errors.New("exec: chromium: not found")
	d := NewDetector(engine, fastSettings(), nil, nil)

	result, err := d.Detect(context.Background(), fastRequest(embedURL))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrSessionAcquisition)
	assert.Contains(t, err.Error(), "chromium")
	assert.Equal(t, 0, d.Stats().Active)
}

func TestDetectInvalidRequest(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession { return &fakeSession{} })
	d := NewDetector(engine, fastSettings(), nil, nil)

	_, err := d.Detect(context.Background(), Request{TargetURL: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, int32(0), engine.created.Load())
}

func TestDetectTriggers(t *testing.T) {
	const stream = "https://cdn.example.com/vod/playlist.m3u8"

	tests := []struct {
		name            string
		attempt         bool
		clickable       map[string][]NetworkEvent
		wantClicks      []string
		wantTriggeredBy string
		wantFallback    bool
		wantFound       bool
	}{
		{
			name:    "stops at first successful control",
			attempt: true,
			clickable: map[string][]NetworkEvent{
				".vjs-big-play-button": {req(stream)},
				".play-btn":            {req("https://cdn.example.com/other.m3u8")},
			},
			wantClicks:      []string{".jw-icon-display", ".vjs-big-play-button"},
			wantTriggeredBy: ".vjs-big-play-button",
			wantFound:       true,
		},
		{
			name:    "disabled trigger goes straight to fallback",
			attempt: false,
			clickable: map[string][]NetworkEvent{
				".jw-icon-display": {req("https://cdn.example.com/never.m3u8")},
				FallbackSelector:   {resp(stream)},
			},
			wantClicks:   []string{FallbackSelector},
			wantFallback: true,
			wantFound:    true,
		},
		{
			name:    "nothing clickable",
			attempt: true,
			wantClicks: append(
				selectorsOf(DefaultTriggers()),
				FallbackSelector,
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine(func() *fakeSession {
				return &fakeSession{clickable: tt.clickable}
			})
			d := NewDetector(engine, fastSettings(), nil, nil)

			r := fastRequest(embedURL)
			r.AttemptPlaybackTrigger = tt.attempt

			result, err := d.Detect(context.Background(), r)
			require.NoError(t, err)

			sessions := engine.Sessions()
			require.Len(t, sessions, 1)
			assert.Equal(t, tt.wantClicks, sessions[0].Clicks())
			assert.Equal(t, tt.wantTriggeredBy, result.Diagnostics.TriggeredBy)
			assert.Equal(t, tt.wantFallback, result.Diagnostics.FallbackClicked)
			assert.Equal(t, tt.wantFound, result.Succeeded)
			if tt.wantFound {
				assert.Equal(t, stream, result.Primary.URL)
			}
		})
	}
}

func selectorsOf(triggers []Trigger) []string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, t.Selector)
	}
	return out
}

func TestDetectConcurrentRunsAreIsolated(t *testing.T) {
	pages := map[string][]NetworkEvent{
		"https://a.example.com/embed": {req("https://cdn-a.example.com/a.m3u8")},
		"https://b.example.com/embed": {req("https://cdn-b.example.com/b.m3u8")},
	}
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{pages: pages}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	var wg sync.WaitGroup
	results := make(map[string]*Result)
	var mu sync.Mutex

	for target := range pages {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			result, err := d.Detect(context.Background(), fastRequest(target))
			assert.NoError(t, err)
			mu.Lock()
			results[target] = result
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	require.Len(t, results, 2)
	for target, result := range results {
		require.Len(t, result.Candidates, 1, target)
		assert.Equal(t, pages[target][0].URL, result.Candidates[0].URL)
	}
	assert.NotEqual(t,
		results["https://a.example.com/embed"].RunID,
		results["https://b.example.com/embed"].RunID,
	)
	assert.Equal(t, int32(2), engine.created.Load())
}

func TestDetectCancellationReleasesSession(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{pages: map[string][]NetworkEvent{
			embedURL: {req("https://cdn.example.com/master.m3u8")},
		}}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	r := fastRequest(embedURL)
	r.Settle = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	result, err := d.Detect(ctx, r)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)

	sessions := engine.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int32(1), sessions[0].closed.Load())
	assert.Equal(t, 0, d.Stats().Active)
}

func TestDetectBusyWhenSlotsExhausted(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession { return &fakeSession{} })
	settings := fastSettings()
	settings.MaxSessions = 1
	settings.QueueTimeout = 20 * time.Millisecond
	d := NewDetector(engine, settings, nil, nil)

	long := fastRequest(embedURL)
	long.Settle = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Detect(ctx, long)
		done <- err
	}()

	require.Eventually(t, func() bool { return d.Stats().Active == 1 }, time.Second, 5*time.Millisecond)

	_, err := d.Detect(context.Background(), fastRequest(embedURL))
	assert.ErrorIs(t, err, ErrBusy)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, Stats{Active: 0, Limit: 1}, d.Stats())
}

func TestDetectKeepsEventsSeenDuringClose(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{
			pages:      map[string][]NetworkEvent{embedURL: {req("https://cdn.example.com/a.m3u8")}},
			afterClose: []NetworkEvent{req("https://cdn.example.com/b.m3u8")},
		}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	result, err := d.Detect(context.Background(), fastRequest(embedURL))
	require.NoError(t, err)

	// Observers stay live until the session is gone
	assert.Len(t, result.Candidates, 2)
}

func TestDetectOnCandidate(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{pages: map[string][]NetworkEvent{
			embedURL: {
				req("https://cdn.example.com/1.m3u8"),
				req("https://cdn.example.com/1.m3u8"),
				resp("https://cdn.example.com/master.m3u8"),
			},
		}}
	})
	d := NewDetector(engine, fastSettings(), nil, nil)

	var seen []string
	r := fastRequest(embedURL)
	r.OnCandidate = func(o ObservedURL) { seen = append(seen, o.URL) }

	_, err := d.Detect(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.example.com/1.m3u8",
		"https://cdn.example.com/master.m3u8",
	}, seen)
}

func TestDetectPassesSessionOptions(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession { return &fakeSession{} })
	settings := fastSettings()
	settings.UserAgent = "TestAgent/1.0"
	d := NewDetector(engine, settings, nil, nil)

	r := fastRequest(embedURL)
	r.Headless = false
	_, err := d.Detect(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, SessionOptions{Headless: false, UserAgent: "TestAgent/1.0"}, engine.lastOptions)
}

func TestDetectRecordsMetrics(t *testing.T) {
	engine := newFakeEngine(func() *fakeSession {
		return &fakeSession{pages: map[string][]NetworkEvent{
			embedURL: {req("https://cdn.example.com/master.m3u8")},
		}}
	})
	metrics := monitoring.NewMetrics()
	d := NewDetector(engine, fastSettings(), nil, metrics)

	_, err := d.Detect(context.Background(), fastRequest(embedURL))
	require.NoError(t, err)

	_, err = NewDetector(Unavailable("rod", errors.New("off")), fastSettings(), nil, metrics).
		Detect(context.Background(), fastRequest(embedURL))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DetectionsTotal.WithLabelValues(monitoring.OutcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DetectionsTotal.WithLabelValues(monitoring.OutcomeUnavailable)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SessionsActive))
	assert.Equal(t, int64(1), metrics.Snapshot().DetectionsHits)
}

func TestDetectLogsTraceID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	engine := newFakeEngine(func() *fakeSession { return &fakeSession{} })
	d := NewDetector(engine, fastSettings(), logger, nil)

	ctx := tracing.WithTraceID(context.Background(), "trace-abc")
	_, err := d.Detect(ctx, fastRequest(embedURL))
	require.NoError(t, err)

	started := logs.FilterMessage("Detection started").All()
	require.Len(t, started, 1)
	fields := started[0].ContextMap()
	assert.Equal(t, "trace-abc", fields["trace_id"])
	assert.NotEmpty(t, fields["run_id"])

	_, err = d.Detect(context.Background(), fastRequest(embedURL))
	require.NoError(t, err)
	started = logs.FilterMessage("Detection started").All()
	require.Len(t, started, 2)
	assert.NotContains(t, started[1].ContextMap(), "trace_id")
}

package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/monitoring"
)

// Settings holds detector-wide behavior shared by every run
type Settings struct {
	UserAgent      string
	TriggerTimeout time.Duration
	FallbackWait   time.Duration
	MaxSessions    int
	QueueTimeout   time.Duration
	Triggers       TriggerTable
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		UserAgent:      DefaultUserAgent,
		TriggerTimeout: DefaultTriggerTimeout,
		FallbackWait:   DefaultFallbackWait,
		MaxSessions:    4,
		QueueTimeout:   30 * time.Second,
		Triggers:       DefaultTriggerTable(),
	}
}

// Stats describes current session usage
type Stats struct {
	Active int `json:"active"`
	Limit  int `json:"limit"`
}

// Detector runs detections against a shared Engine
type Detector struct {
	engine   Engine
	settings Settings
	slots    *semaphore.Weighted
	active   atomic.Int64
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewDetector creates a detector. logger and metrics may be nil.
func NewDetector(engine Engine, settings Settings, logger *logging.Logger, metrics *monitoring.Metrics) *Detector {
	if engine == nil {
		engine = Unavailable("none", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if settings.UserAgent == "" {
		settings.UserAgent = DefaultUserAgent
	}
	if settings.TriggerTimeout <= 0 {
		settings.TriggerTimeout = DefaultTriggerTimeout
	}
	if settings.FallbackWait < 0 {
		settings.FallbackWait = 0
	}
	if settings.MaxSessions <= 0 {
		settings.MaxSessions = 1
	}
	if settings.Triggers.Len() == 0 {
		settings.Triggers = DefaultTriggerTable()
	}

	return &Detector{
		engine:   engine,
		settings: settings,
		slots:    semaphore.NewWeighted(int64(settings.MaxSessions)),
		logger:   logger.Named("detect"),
		metrics:  metrics,
	}
}

// Engine returns the engine sessions are created from
func (d *Detector) Engine() Engine {
	return d.engine
}

// Stats returns open sessions and the session limit
func (d *Detector) Stats() Stats {
	return Stats{
		Active: int(d.active.Load()),
		Limit:  d.settings.MaxSessions,
	}
}

// Detect runs one detection. The session it opens is always closed before
// Detect returns. Only engine, admission, acquisition and cancellation
// failures are returned as errors; a page that never loads still yields a
// (possibly empty) result.
func (d *Detector) Detect(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.TargetURL) == "" {
		return nil, ErrInvalidRequest
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Settle < 0 {
		req.Settle = 0
	}

	timer := monitoring.NewTimer(d.metrics)

	if err := d.engine.Available(); err != nil {
		timer.Stop(monitoring.OutcomeUnavailable, 0)
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	if err := d.admit(ctx); err != nil {
		timer.Stop(outcomeOf(err), 0)
		return nil, err
	}
	defer d.slots.Release(1)

	r := newRun(ctx, d, req)
	defer r.release()

	r.log.Info("Detection started", zap.String("url", req.TargetURL))

	result, err := r.execute(ctx)
	if err != nil {
		timer.Stop(outcomeOf(err), 0)
		r.log.Warn("Detection failed", zap.Error(err))
		return nil, err
	}

	outcome := monitoring.OutcomeEmpty
	if result.Succeeded {
		outcome = monitoring.OutcomeFound
	}
	timer.Stop(outcome, result.Count())

	r.log.Info("Detection finished",
		zap.Int("candidates", result.Count()),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// admit waits for a session slot, bounded by the queue timeout
func (d *Detector) admit(ctx context.Context) error {
	qctx := ctx
	if d.settings.QueueTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, d.settings.QueueTimeout)
		defer cancel()
	}

	if err := d.slots.Acquire(qctx, 1); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("waiting for session slot: %w", ctx.Err())
		}
		return ErrBusy
	}
	return nil
}

func (d *Detector) sessionOpened() {
	d.active.Add(1)
	if d.metrics != nil {
		d.metrics.IncSessionsActive()
	}
}

func (d *Detector) sessionClosed() {
	d.active.Add(-1)
	if d.metrics != nil {
		d.metrics.DecSessionsActive()
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return monitoring.OutcomeBusy
	case errors.Is(err, ErrSessionAcquisition):
		return monitoring.OutcomeLaunchError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return monitoring.OutcomeCancelled
	default:
		return monitoring.OutcomeLaunchError
	}
}

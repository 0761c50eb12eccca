package detect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/StreamSniffer/internal/shared/id"
)

// phase is a step of a detection run
type phase int

const (
	phaseAcquire phase = iota
	phaseNavigate
	phaseTrigger
	phaseSettle
	phaseFallback
	phaseRelease
	phaseRank
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseAcquire:
		return "acquire"
	case phaseNavigate:
		return "navigate"
	case phaseTrigger:
		return "trigger"
	case phaseSettle:
		return "settle"
	case phaseFallback:
		return "fallback"
	case phaseRelease:
		return "release"
	case phaseRank:
		return "rank"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// run is the state of a single detection
type run struct {
	d         *Detector
	req       Request
	id        string
	start     time.Time
	phase     phase
	log       *logging.Logger
	collector *Collector
	session   Session
	diag      Diagnostics
}

func newRun(ctx context.Context, d *Detector, req Request) *run {
	runID := id.NewRunID().String()
	start := time.Now()
	log := d.logger.With(zap.String("run_id", runID))
	if tid := tracing.GetTraceID(ctx); tid != "" {
		log = log.With(zap.String("trace_id", string(tid)))
	}
	return &run{
		d:         d,
		req:       req,
		id:        runID,
		start:     start,
		phase:     phaseAcquire,
		log:       log,
		collector: NewCollector(start, req.OnCandidate),
	}
}

func (r *run) enter(p phase) {
	r.phase = p
	r.log.Debug("Entering phase", zap.Stringer("phase", p))
}

// execute drives the run from acquisition to the ranked result
func (r *run) execute(ctx context.Context) (*Result, error) {
	r.enter(phaseAcquire)
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}

	steps := []struct {
		phase phase
		fn    func(context.Context)
	}{
		{phaseNavigate, r.navigate},
		{phaseTrigger, r.trigger},
		{phaseSettle, r.settle},
		{phaseFallback, r.fallback},
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		r.enter(step.phase)
		step.fn(ctx)
	}

	r.enter(phaseRelease)
	found := r.release()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("detection cancelled: %w", err)
	}

	r.enter(phaseRank)
	ranked := Rank(found)

	result := &Result{
		RunID:       r.id,
		Succeeded:   len(ranked) > 0,
		Candidates:  ranked,
		Diagnostics: r.diag,
	}
	if len(ranked) > 0 {
		primary := ranked[0]
		result.Primary = &primary
	}
	result.Elapsed = time.Since(r.start)

	r.enter(phaseDone)
	return result, nil
}

func (r *run) acquire(ctx context.Context) error {
	sess, err := r.d.engine.NewSession(ctx, SessionOptions{
		Headless:  r.req.Headless,
		UserAgent: r.d.settings.UserAgent,
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("detection cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrSessionAcquisition, err)
	}

	r.session = sess
	r.d.sessionOpened()
	sess.Listen(func(ev NetworkEvent) {
		if r.collector.Observe(ev) {
			r.log.Debug("Candidate observed",
				zap.String("candidate", ev.URL),
				zap.Stringer("source", ev.Source),
			)
		}
	})
	return nil
}

func (r *run) navigate(ctx context.Context) {
	nctx, cancel := context.WithTimeout(ctx, r.req.Timeout)
	defer cancel()

	if err := r.session.Navigate(nctx, r.req.TargetURL); err != nil {
		r.diag.NavigationError = err.Error()
		if r.d.metrics != nil {
			r.d.metrics.IncNavigationFailures()
		}
		r.log.Warn("Navigation degraded", zap.Error(err))
	}
}

func (r *run) trigger(ctx context.Context) {
	if !r.req.AttemptPlaybackTrigger {
		return
	}

	for _, t := range r.d.settings.Triggers.Entries() {
		if ctx.Err() != nil {
			return
		}
		if err := r.click(ctx, t.Selector); err != nil {
			continue
		}
		r.diag.TriggeredBy = t.Selector
		if r.d.metrics != nil {
			r.d.metrics.RecordTrigger(t.Player)
		}
		r.log.Debug("Playback triggered", zap.String("selector", t.Selector))
		return
	}
	r.log.Debug("No playback control matched")
}

func (r *run) settle(ctx context.Context) {
	sleep(ctx, r.req.Settle)
}

func (r *run) fallback(ctx context.Context) {
	if r.collector.Len() > 0 {
		return
	}
	if err := r.click(ctx, FallbackSelector); err != nil {
		r.log.Debug("Fallback click skipped", zap.Error(err))
		return
	}
	r.diag.FallbackClicked = true
	sleep(ctx, r.d.settings.FallbackWait)
}

// click bounds one click attempt by the trigger timeout
func (r *run) click(ctx context.Context, selector string) error {
	cctx, cancel := context.WithTimeout(ctx, r.d.settings.TriggerTimeout)
	defer cancel()
	return r.session.Click(cctx, selector)
}

// release closes the session and seals the collector. Safe to call twice.
func (r *run) release() []ObservedURL {
	if r.session != nil {
		if err := r.session.Close(); err != nil {
			r.log.Warn("Session close failed", zap.Error(err))
		}
		r.session = nil
		r.d.sessionClosed()
	}
	return r.collector.Seal()
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

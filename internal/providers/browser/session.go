package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
)

// session owns one browser process and the single page a run drives
type session struct {
	launcher     *launcher.Launcher
	browser      *rod.Browser
	incognito    *rod.Browser
	page         *rod.Page
	closeTimeout time.Duration
	logger       *logging.Logger

	stopEvents context.CancelFunc
	eventsDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

func (s *session) open(controlURL, userAgent string) error {
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	s.browser = b

	inc, err := b.Incognito()
	if err != nil {
		return fmt.Errorf("create incognito context: %w", err)
	}
	s.incognito = inc

	page, err := inc.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	return nil
}

// Listen forwards network events to fn until Close
func (s *session) Listen(fn func(detect.NetworkEvent)) {
	if s.stopEvents != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopEvents = cancel
	s.eventsDone = make(chan struct{})

	// EachEvent subscribes immediately; wait only drains
	wait := s.page.Context(ctx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			fn(detect.NetworkEvent{URL: ev.Request.URL, Source: detect.SourceRequest})
		},
		func(ev *proto.NetworkResponseReceived) {
			fn(detect.NetworkEvent{URL: ev.Response.URL, Source: detect.SourceResponse})
		},
	)

	go func() {
		defer close(s.eventsDone)
		wait()
	}()
}

// Navigate loads url and waits for DOMContentLoaded
func (s *session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)

	domReady := page.WaitEvent(&proto.PageDomContentEventFired{})
	if err := page.Navigate(url); err != nil {
		return err
	}
	domReady()

	return ctx.Err()
}

// Click clicks the first element matching selector once it appears
func (s *session) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Close releases page, context and process in that order. Later calls
// return the first result.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.stopEvents != nil {
			s.stopEvents()
			<-s.eventsDone
		}

		var errs []error
		if s.page != nil {
			errs = append(errs, s.page.Timeout(s.closeTimeout).Close())
		}
		if s.incognito != nil {
			errs = append(errs, s.incognito.Timeout(s.closeTimeout).Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Timeout(s.closeTimeout).Close())
		}

		s.launcher.Kill()
		s.launcher.Cleanup()

		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			s.logger.Debug("Browser session closed with errors", zap.Error(s.closeErr))
		}
	})
	return s.closeErr
}

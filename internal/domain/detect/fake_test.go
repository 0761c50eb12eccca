package detect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errNoElement = errors.New("no element matches selector")

// fakeSession replays scripted network events instead of driving a browser
type fakeSession struct {
	mu       sync.Mutex
	listener func(NetworkEvent)
	clicks   []string
	closed   atomic.Int32

	pages        map[string][]NetworkEvent // events emitted when a URL loads
	navigateErr  error
	hangNavigate bool
	clickable    map[string][]NetworkEvent // events emitted when a selector is clicked
	clickDelay   time.Duration             // pause before a click emits its events
	afterClose   []NetworkEvent
}

func (s *fakeSession) Listen(fn func(NetworkEvent)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if s.hangNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	s.emit(s.pages[url])
	return s.navigateErr
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	s.clicks = append(s.clicks, selector)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	events, ok := s.clickable[selector]
	if !ok {
		return errNoElement
	}
	if s.clickDelay > 0 {
		time.Sleep(s.clickDelay)
	}
	s.emit(events)
	return nil
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	s.emit(s.afterClose)
	return nil
}

func (s *fakeSession) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

func (s *fakeSession) emit(events []NetworkEvent) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}

// fakeEngine hands out sessions built by factory
type fakeEngine struct {
	mu          sync.Mutex
	factory     func() *fakeSession
	availErr    error
	newErr      error
	created     atomic.Int32
	sessions    []*fakeSession
	lastOptions SessionOptions
}

func newFakeEngine(factory func() *fakeSession) *fakeEngine {
	return &fakeEngine{factory: factory}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Available() error { return e.availErr }

func (e *fakeEngine) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if e.newErr != nil {
		return nil, e.newErr
	}
	e.created.Add(1)

	s := e.factory()
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.lastOptions = opts
	e.mu.Unlock()
	return s, nil
}

func (e *fakeEngine) Sessions() []*fakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakeSession(nil), e.sessions...)
}

func req(url string) NetworkEvent  { return NetworkEvent{URL: url, Source: SourceRequest} }
func resp(url string) NetworkEvent { return NetworkEvent{URL: url, Source: SourceResponse} }

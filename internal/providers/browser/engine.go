package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
)

// EngineName identifies this engine in health output
const EngineName = "chromium-rod"

var (
	// ErrDisabled means the engine was switched off by configuration
	ErrDisabled = errors.New("browser engine disabled by configuration")
	// ErrNoBrowser means no Chromium-family executable was found
	ErrNoBrowser = errors.New("no chromium-compatible browser found")
)

// Config configures the rod engine
type Config struct {
	Enabled       bool
	Bin           string
	NoSandbox     bool
	LaunchTimeout time.Duration
	CloseTimeout  time.Duration
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		NoSandbox:     true,
		LaunchTimeout: 20 * time.Second,
		CloseTimeout:  5 * time.Second,
	}
}

// Engine launches one Chromium process per session through rod
type Engine struct {
	cfg    Config
	bin    string
	logger *logging.Logger
}

// NewEngine resolves the browser executable once. When the engine is
// disabled or no executable exists it returns detect.Unavailable.
func NewEngine(cfg Config, logger *logging.Logger) detect.Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("browser")

	if !cfg.Enabled {
		logger.Warn("Browser engine disabled")
		return detect.Unavailable(EngineName, ErrDisabled)
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = DefaultConfig().LaunchTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultConfig().CloseTimeout
	}

	bin, err := resolveBin(cfg.Bin)
	if err != nil {
		logger.Error("Browser engine unavailable", zap.Error(err))
		return detect.Unavailable(EngineName, err)
	}

	logger.Info("Browser engine ready", zap.String("bin", bin))
	return &Engine{cfg: cfg, bin: bin, logger: logger}
}

func resolveBin(configured string) (string, error) {
	if configured != "" {
		info, err := os.Stat(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrNoBrowser, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrNoBrowser, configured)
		}
		return configured, nil
	}

	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	return "", ErrNoBrowser
}

// Name returns the engine name
func (e *Engine) Name() string {
	return EngineName
}

// Available always reports success once the executable was resolved
func (e *Engine) Available() error {
	return nil
}

// Bin returns the resolved browser executable
func (e *Engine) Bin() string {
	return e.bin
}

// NewSession launches a browser, opens an incognito context and one page
func (e *Engine) NewSession(ctx context.Context, opts detect.SessionOptions) (detect.Session, error) {
	l := e.launcher(opts.Headless)

	lctx, cancel := context.WithTimeout(ctx, e.cfg.LaunchTimeout)
	defer cancel()

	controlURL, err := l.Context(lctx).Launch()
	if err != nil {
		// Cleanup blocks until the process exits, which never happens when
		// it failed to start, so only the profile directory is removed.
		l.Kill()
		_ = os.RemoveAll(l.Get(flags.UserDataDir))
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s := &session{
		launcher:     l,
		closeTimeout: e.cfg.CloseTimeout,
		logger:       e.logger,
	}

	if err := s.open(controlURL, opts.UserAgent); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (e *Engine) launcher(headless bool) *launcher.Launcher {
	l := launcher.New().
		Bin(e.bin).
		Headless(headless).
		NoSandbox(e.cfg.NoSandbox)

	// Container-safe defaults
	l = l.Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-blink-features", "AutomationControlled")

	// Media must start without a user gesture for the stream to load
	l = l.Set("mute-audio").
		Set("autoplay-policy", "no-user-gesture-required")

	// Cross-site player iframes must stay in the page's own target,
	// otherwise their requests go to a separate session we never listen on
	l = l.Set("disable-site-isolation-trials").
		Set("disable-features", "IsolateOrigins,site-per-process")

	return l
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/StreamSniffer/internal/api/http"
	"github.com/GriffinCanCode/StreamSniffer/internal/api/middleware"
	"github.com/GriffinCanCode/StreamSniffer/internal/api/ws"
	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/config"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/StreamSniffer/internal/providers/browser"
	httpProvider "github.com/GriffinCanCode/StreamSniffer/internal/providers/http"
	httpclient "github.com/GriffinCanCode/StreamSniffer/internal/providers/http/client"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	detector *detect.Detector
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	// cancel aborts the contexts of requests still running after shutdown
	cancel context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing stream detection server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("browser_enabled", cfg.Browser.Enabled),
		zap.Int("max_sessions", cfg.Browser.MaxSessions),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New(logger)

	triggers, err := loadTriggers(cfg.Browser.TriggersFile)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	engine := browser.NewEngine(browserConfig(cfg.Browser), logger)
	if reason := engine.Available(); reason != nil {
		logger.Warn("Browser engine unavailable, detection requests will fail",
			zap.String("engine", engine.Name()),
			zap.Error(reason),
		)
	}

	detector := detect.NewDetector(engine, detect.Settings{
		UserAgent:      cfg.Browser.UserAgent,
		TriggerTimeout: cfg.Detect.TriggerTimeout(),
		FallbackWait:   cfg.Detect.FallbackWait(),
		MaxSessions:    cfg.Browser.MaxSessions,
		QueueTimeout:   cfg.Browser.QueueTimeout,
		Triggers:       triggers,
	}, logger, metrics)

	upstream := httpclient.NewClient(httpclient.Config{
		Timeout:           cfg.Proxy.Timeout,
		RetryMax:          cfg.Proxy.RetryMax,
		RetryWaitMin:      httpclient.DefaultConfig().RetryWaitMin,
		RetryWaitMax:      httpclient.DefaultConfig().RetryWaitMax,
		RequestsPerSecond: cfg.Proxy.RequestsPerSec,
		Burst:             cfg.Proxy.Burst,
	}, logger)

	relayCfg := httpProvider.DefaultRelayConfig()
	relayCfg.AllowInsecure = cfg.Proxy.AllowInsecure
	relayCfg.MaxPlaylistBytes = cfg.Proxy.MaxPlaylistBytes
	if cfg.Proxy.UserAgent != "" {
		relayCfg.UserAgent = cfg.Proxy.UserAgent
	}
	relay := httpProvider.NewRelay(upstream, relayCfg, logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(detector, relay, cfg.Detect, apihttp.Options{
		Upstream:   upstream,
		PlayerHTML: cfg.Server.PlayerHTML,
		Metrics:    metrics,
		Logger:     logger,
	})
	wsHandler := ws.NewHandler(detector, cfg.Detect, logger)

	// Player page
	router.GET("/", handlers.Player)
	router.GET("/index.html", handlers.Player)

	// Detection
	router.GET("/api/detect", handlers.Detect)
	router.GET("/api/detect/stream", wsHandler.HandleConnection)

	// Stream relay
	router.GET("/api/proxy", handlers.Proxy)
	router.GET("/proxy", handlers.Proxy)

	// Status
	router.GET("/api/health", handlers.Health)
	router.GET("/api/metrics", handlers.Metrics)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Preflight for clients that skip the Origin header
	router.OPTIONS("/*path", func(c *gin.Context) {
		httpProvider.SetCORS(c.Writer.Header())
		c.AbortWithStatus(http.StatusNoContent)
	})
	router.NoRoute(handlers.NotFound)

	logger.Info("Server initialized successfully")

	base, cancel := context.WithCancel(context.Background())
	return &Server{
		cancel:   cancel,
		router:   router,
		detector: detector,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
	}, nil
}

func loadTriggers(path string) (detect.TriggerTable, error) {
	if path == "" {
		return detect.DefaultTriggerTable(), nil
	}
	extra, err := detect.LoadTriggers(path)
	if err != nil {
		return detect.TriggerTable{}, fmt.Errorf("failed to load triggers: %w", err)
	}
	return detect.NewTriggerTable(detect.DefaultTriggers(), extra), nil
}

func browserConfig(cfg config.BrowserConfig) browser.Config {
	bc := browser.DefaultConfig()
	bc.Enabled = cfg.Enabled
	bc.Bin = cfg.Bin
	bc.NoSandbox = cfg.NoSandbox
	return bc
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Logger returns the server logger
func (s *Server) Logger() *logging.Logger {
	return s.logger
}

// Run starts the HTTP server and blocks until it stops. A graceful
// shutdown is not reported as an error.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server. In-flight detections finish or
// are cancelled when ctx expires; either way their sessions are released.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	s.cancel()

	stats := s.detector.Stats()
	if stats.Active > 0 {
		s.logger.Warn("Detections still running at shutdown", zap.Int("active", stats.Active))
	}

	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}

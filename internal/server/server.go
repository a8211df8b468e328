package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/console/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/console/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/console/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/ws"
)

const (
	consoleUpgradesPerSecond = 1
	consoleUpgradeBurst      = 5
)

// Server wraps the HTTP server and the kernel it exposes
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	hub        *ws.Hub
	kernel     *kernel.Kernel
	tracer     *tracing.Tracer
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// New creates the kernel, the websocket hub and the HTTP routes
func New(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	logger.Info("Initializing console server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	tracer := tracing.New("console", logger)
	hub := ws.NewHub(cfg.Transport.WriteTimeout, logger, metrics,
		ws.WithAllowedOrigins(cfg.Server.AllowedOrigins...))

	k, err := kernel.New(cfg, hub, stream.NewQueue(), logger, metrics)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to start kernel: %w", err)
	}
	k.WithTracer(tracer)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	router.Use(middleware.CORS(corsConfig))

	// Only one console client is served at a time; reconnect storms share
	// a single bucket.
	upgrades := []gin.HandlerFunc{hub.Handler(k)}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
		upgrades = append([]gin.HandlerFunc{middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: consoleUpgradesPerSecond,
			Burst:             consoleUpgradeBurst,
		})}, upgrades...)
	}

	handlers := apihttp.NewHandlers(k, hub, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", handlers.MetricsJSON)
	router.POST("/stdin", handlers.Stdin)
	router.GET("/console", upgrades...)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server initialized successfully")

	return &Server{
		router:     router,
		httpServer: &http.Server{Addr: addr, Handler: router},
		hub:        hub,
		kernel:     k,
		tracer:     tracer,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Kernel returns the kernel served by s
func (s *Server) Kernel() *kernel.Kernel {
	return s.kernel
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then stops running cells, the kernel
// and the tracer, in that order
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}
	if err := s.hub.Close(); err != nil {
		s.logger.Debug("Closing console client", zap.Error(err))
	}
	if err := s.kernel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop kernel: %w", err))
	}
	s.tracer.Close()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

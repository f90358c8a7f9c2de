package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	apihttp "github.com/GriffinCanCode/jsvm/internal/api/http"
	"github.com/GriffinCanCode/jsvm/internal/api/middleware"
	"github.com/GriffinCanCode/jsvm/internal/api/ws"
	"github.com/GriffinCanCode/jsvm/internal/hostapi"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsvm/internal/rpc"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/session"
)

// ShutdownTimeout bounds how long in-flight requests get on shutdown.
const ShutdownTimeout = 10 * time.Second

// Server wires the evaluation API together
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	fetcher  *hostapi.Fetcher
	pool     *sandbox.Pool
	sessions *session.Manager
	router   *gin.Engine
	handler  http.Handler
	grpc     *grpc.Server
}

// New creates a server from configuration. A nil logger is built from
// cfg.Logging.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing jsvm server",
		zap.String("port", cfg.Server.Port),
		zap.Bool("grpc", cfg.GRPC.Enabled),
		zap.Int("pool_size", cfg.Sandbox.PoolSize),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("jsvm", logger.Logger)

	var fetcher *hostapi.Fetcher
	if cfg.Fetch.Enabled {
		fetcher = hostapi.NewFetcher(fetchConfig(cfg.Fetch), logger.Logger, metrics)
		logger.Info("Script fetch enabled", zap.Strings("allowed_hosts", cfg.Fetch.AllowedHosts))
	}

	sbCfg := sandboxConfig(cfg.Sandbox, fetcher, logger.Logger, metrics)

	pool, err := sandbox.NewPool(sbCfg, cfg.Sandbox.PoolSize)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	sessions := session.NewManager(session.Config{
		MaxSessions: cfg.Session.MaxSessions,
		IdleTimeout: cfg.Session.IdleTimeout.Std(),
		Sandbox:     sbCfg,
	}, logger.Logger, metrics)

	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		fetcher:  fetcher,
		pool:     pool,
		sessions: sessions,
	}
	s.router = s.buildRouter(sbCfg)

	s.handler = s.router
	if cfg.Server.Compress {
		s.handler = gzhttp.GzipHandler(s.router)
	}

	if cfg.GRPC.Enabled {
		evaluator := rpc.NewEvaluator(pool, cfg.Sandbox.MaxScriptBytes, logger.Logger)
		s.grpc = rpc.NewServer(evaluator, metrics, logger.Logger, tracing.GRPCUnaryInterceptor(tracer))
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) buildRouter(sbCfg sandbox.Config) *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(middleware.Logger(s.logger.Logger))
	router.Use(monitoring.Middleware(s.metrics))

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(corsCfg))

	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(apihttp.Options{
		Pool:           s.pool,
		Sessions:       s.sessions,
		Fetcher:        s.fetcher,
		Metrics:        s.metrics,
		Logger:         s.logger.Logger,
		MaxScriptBytes: cfg.Sandbox.MaxScriptBytes,
	})
	apihttp.RegisterRoutes(router, handlers)

	wsHandler := ws.NewHandler(sbCfg, s.metrics, s.logger.Logger)
	router.GET("/stream", wsHandler.HandleConnection)

	return router
}

// Handler returns the HTTP handler, compressed when configured.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	httpLis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	var grpcLis net.Listener
	if s.grpc != nil {
		grpcAddr := net.JoinHostPort(s.config.Server.Host, s.config.GRPC.Port)
		grpcLis, err = net.Listen("tcp", grpcAddr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
		}
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves HTTP on httpLis and, when gRPC is enabled, the evaluator on
// grpcLis. It returns after a graceful shutdown once ctx is done, or on the
// first listener error.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", httpLis.Addr().String()))
		if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.grpc != nil && grpcLis != nil {
		g.Go(func() error {
			s.logger.Info("Starting gRPC server", zap.String("addr", grpcLis.Addr().String()))
			if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		s.sessions.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down listeners")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if s.grpc != nil {
			s.grpc.GracefulStop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases sandboxes and flushes logs. Call it after Serve returns.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sessions: %w", err))
	}
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close pool: %w", err))
	}
	s.tracer.Close()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func sandboxConfig(cfg config.SandboxConfig, fetcher *hostapi.Fetcher, logger *zap.Logger, metrics *monitoring.Metrics) sandbox.Config {
	sb := sandbox.DefaultConfig()
	if cfg.MaxCallStack > 0 {
		sb.MaxCallStackSize = cfg.MaxCallStack
	}
	if cfg.MaxDumpDepth > 0 {
		sb.MaxDumpDepth = cfg.MaxDumpDepth
	}
	if cfg.MaxDumpElements > 0 {
		sb.MaxDumpElements = cfg.MaxDumpElements
	}
	sb.Timeout = cfg.Timeout.Std()
	sb.EnableConsole = cfg.EnableConsole
	sb.EnableHelpers = cfg.EnableHelpers
	sb.Fetcher = fetcher
	sb.Logger = logger
	sb.Metrics = metrics
	return sb
}

func fetchConfig(cfg config.FetchConfig) hostapi.FetchConfig {
	fc := hostapi.DefaultFetchConfig()
	if cfg.Timeout > 0 {
		fc.Timeout = cfg.Timeout.Std()
	}
	if cfg.RetryMax >= 0 {
		fc.RetryMax = cfg.RetryMax
	}
	fc.RatePerSecond = cfg.RatePerSecond
	if cfg.Burst > 0 {
		fc.Burst = cfg.Burst
	}
	if cfg.MaxBodyBytes > 0 {
		fc.MaxBodyBytes = cfg.MaxBodyBytes
	}
	fc.AllowedHosts = cfg.AllowedHosts
	return fc
}

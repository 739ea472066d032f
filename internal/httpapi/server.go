package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/metrics/export/prometheus"
	"github.com/MrEthical07/adminauth/middleware"
	"github.com/MrEthical07/adminauth/permission"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	// AuthRequestsPerMinute limits unauthenticated /auth calls per client IP.
	// Zero disables the limit.
	AuthRequestsPerMinute int
	EnableMetrics         bool
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:                  "0.0.0.0:8080",
		ShutdownTimeout:       30 * time.Second,
		CORSOrigins:           []string{"http://localhost:3000"},
		MaxBodySize:           1 << 20,
		AuthRequestsPerMinute: 30,
		EnableMetrics:         true,
	}
}

// Pinger reports backend reachability for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the engine over JSON/HTTP.
type Server struct {
	cfg        Config
	engine     *adminauth.Engine
	health     Pinger
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New wires routes and middleware. health may be nil, in which case /readyz
// always reports ok.
func New(cfg Config, engine *adminauth.Engine, health Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		health: health,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.MaxBodySize > 0 {
		r.Use(limitBody(s.cfg.MaxBodySize))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.cfg.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", prometheus.New(s.engine).Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.AuthRequestsPerMinute > 0 {
				r.Use(httprate.LimitByIP(s.cfg.AuthRequestsPerMinute, time.Minute))
			}
			r.Use(middleware.ClientContext)

			r.Post("/login", s.handleLogin)
			r.Post("/verify-2fa", s.handleVerifySecondFactor)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
		})

		// Logout does not require a live session.
		r.With(middleware.ClientContext).Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(s.engine))
			r.Post("/change-password", s.handleChangePassword)
			r.Post("/logout-others", s.handleLogoutOthers)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireSession(s.engine))

		r.Get("/profile", s.handleGetProfile)
		r.Patch("/profile", s.handleUpdateProfile)

		// Per-action permissions are enforced by the engine.
		r.Post("/requests", s.handleSubmitRequest)
		r.With(middleware.RequirePermission(s.engine, permission.ViewPending)).Get("/requests", s.handleListRequests)
		r.Get("/requests/{requestID}", s.handleGetRequest)
		r.With(middleware.RequirePermission(s.engine, permission.ApproveReject)).Post("/requests/{requestID}/resolve", s.handleResolveRequest)
		r.With(middleware.RequirePermission(s.engine, permission.ViewActivity)).Get("/activity", s.handleListActivity)
	})

	s.router = r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request at a level chosen by status.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			}
			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"aichat/internal/chat"
	"aichat/internal/config"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 60 * time.Second
	idleTimeout         = 120 * time.Second
	streamWriteSlack    = 15 * time.Second
)

type Server struct {
	cfg     config.Config
	chat    *chat.Service
	app     *echo.Echo
	logger  *slog.Logger
	address string
	now     func() time.Time
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, svc *chat.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("chat service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		chat:    svc,
		app:     e,
		logger:  logger,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		now:     time.Now,
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	s.logger.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: s.cfg.Server.RequestTimeout + streamWriteSlack,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)

	api := s.app.Group("/api", sessionCookie)
	api.GET("/config", s.handleConfig)
	api.POST("/chat", s.handleChat)
	api.POST("/upload", s.handleUpload)
	api.POST("/reset", s.handleReset)
	api.GET("/history", s.handleHistory)
	api.GET("/download", s.handleDownload)
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("aichat ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/config")
	fmt.Println("  POST /api/chat?provider=<id>&model=<id>&stream=1")
	fmt.Println("  POST /api/upload   POST /api/reset")
	fmt.Println("  GET  /api/history  GET  /api/download")
	fmt.Printf("Example:\n  curl -N http://%s:%d/api/chat?provider=openai\\&model=gpt-4o\\&stream=1 -F text=hello\n\n", host, port)
}

package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
)

// RouteRegistrar mounts routes on an App.
type RouteRegistrar func(*App)

// Server serves an App with graceful shutdown.
type Server struct {
	app      *App
	address  string
	read     time.Duration
	write    time.Duration
	shutdown time.Duration
}

// NewServer builds a server with, in order: request metrics, the middleware
// stack (recover and request logging unless replaced), then CORS.
func NewServer(opts ...ServerOption) *Server {
	cfg := defaultServerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	app := newApp()
	e := app.e
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(cfg.logger)

	if cfg.metrics != nil {
		e.Use(MetricsMiddleware(cfg.metrics))
	}
	middlewares := cfg.middlewares
	if middlewares == nil {
		middlewares = []MiddlewareFunc{RecoverMiddleware(), RequestLogger(cfg.logger)}
	}
	e.Use(middlewares...)
	if cfg.cors {
		e.Use(CORSMiddleware(cfg.corsOrigins...))
	}

	return &Server{
		app:      app,
		address:  cfg.address,
		read:     cfg.readTimeout,
		write:    cfg.writeTimeout,
		shutdown: cfg.shutdown,
	}
}

func (s *Server) RegisterRoutes(reg RouteRegistrar) {
	if reg != nil {
		reg(s.app)
	}
}

func (s *Server) Handler() http.Handler { return s.app.e }

// Address returns the listen address the server was configured with.
func (s *Server) Address() string { return s.address }

// Start serves until ctx is cancelled, then shuts down gracefully within the
// shutdown timeout and returns ctx.Err().
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.app.e,
		ReadTimeout:  s.read,
		WriteTimeout: s.write,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// errorHandler renders errors as {"error": message}. Errors that are not
// HTTP errors become 500s and are logged, since their text is not shown.
func errorHandler(logger log.Interface) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				msg = m
			case error:
				msg = m.Error()
			}
		} else {
			logger.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled error")
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RecoverMiddleware turns handler panics into 500 responses.
func RecoverMiddleware() MiddlewareFunc { return middleware.Recover() }

// CORSMiddleware allows cross-origin GET and DELETE from origins. No origins
// means any origin.
func CORSMiddleware(origins ...string) MiddlewareFunc {
	cfg := middleware.DefaultCORSConfig
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodDelete}
	return middleware.CORSWithConfig(cfg)
}

// RequestLogger writes one entry per request to logger: INFO normally,
// WARN for 5xx.
func RequestLogger(logger log.Interface) MiddlewareFunc {
	if logger == nil {
		logger = log.Log
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)
			status := responseStatus(c, err)

			entry := logger.WithFields(log.Fields{
				"method":   c.Request().Method,
				"path":     c.Request().URL.Path,
				"status":   status,
				"duration": time.Since(start).Round(time.Microsecond).String(),
			})
			if status >= http.StatusInternalServerError {
				if err != nil {
					entry = entry.WithError(err)
				}
				entry.Warn("request failed")
			} else {
				entry.Info("request")
			}
			return err
		}
	}
}

// RequestMetrics counts and times requests by route template.
type RequestMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewRequestMetrics registers HTTP metrics under namespace. A nil registerer
// uses the default registry.
func NewRequestMetrics(namespace string, reg prometheus.Registerer) *RequestMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &RequestMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by route template and status",
		}, []string{"method", "route", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds, upstream fetches included",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

// MetricsMiddleware records every request in m, labelled by route template.
// Requests that match no route share the "unmatched" label.
func MetricsMiddleware(m *RequestMetrics) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" || errors.Is(err, echo.ErrNotFound) {
				route = "unmatched"
			}
			method := c.Request().Method
			m.Requests.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()
			m.Duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// MetricsHandler exposes g in the Prometheus text format. A nil gatherer uses
// the default registry.
func MetricsHandler(g prometheus.Gatherer) HandlerFunc {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// responseStatus is the status the error handler will write for err, or the
// committed status when the handler succeeded.
func responseStatus(c Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	if c.Response().Committed {
		return c.Response().Status
	}
	return http.StatusInternalServerError
}

package httpx

import (
	"time"

	"github.com/apex/log"
)

type serverOptions struct {
	address      string
	readTimeout  time.Duration
	writeTimeout time.Duration
	shutdown     time.Duration
	middlewares  []MiddlewareFunc
	corsOrigins  []string
	cors         bool
	metrics      *RequestMetrics
	logger       log.Interface
}

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

func defaultServerOptions() serverOptions {
	return serverOptions{
		address:     ":8080",
		readTimeout: 15 * time.Second,
		// Chapter and search fetches can be slow on a cold cache.
		writeTimeout: 45 * time.Second,
		shutdown:     5 * time.Second,
		logger:       log.Log,
	}
}

func WithAddress(addr string) ServerOption {
	return func(o *serverOptions) {
		if addr != "" {
			o.address = addr
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *serverOptions) {
		if read > 0 {
			o.readTimeout = read
		}
		if write > 0 {
			o.writeTimeout = write
		}
	}
}

// WithShutdownTimeout bounds how long Start waits for in-flight requests
// after its context ends.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		if d > 0 {
			o.shutdown = d
		}
	}
}

// WithMiddlewares replaces the default stack of recover plus request logging.
func WithMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *serverOptions) {
		o.middlewares = append([]MiddlewareFunc{}, mw...)
	}
}

// WithLogger sets the logger for the request log and 5xx errors.
func WithLogger(l log.Interface) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCORS enables CORS for origins, or for any origin when none are given.
func WithCORS(origins ...string) ServerOption {
	return func(o *serverOptions) {
		o.cors = true
		o.corsOrigins = append([]string{}, origins...)
	}
}

// WithRequestMetrics records per-route request counts and latencies in m.
func WithRequestMetrics(m *RequestMetrics) ServerOption {
	return func(o *serverOptions) { o.metrics = m }
}

type clientOptions struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	headers   map[string]string
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

func defaultClientOptions() clientOptions {
	return clientOptions{
		timeout:   10 * time.Second,
		userAgent: "go-lsbible",
		headers:   map[string]string{"Accept": "application/json"},
	}
}

func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		if url != "" {
			o.baseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(o *clientOptions) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithHeaders adds headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

package httpx

import "net/http/httptest"

// TestServer runs an App on a loopback port for tests.
type TestServer struct{ *httptest.Server }

// NewAppTestServer starts a TestServer dispatching to the routes registered
// by reg, with the middleware that opts select.
func NewAppTestServer(reg RouteRegistrar, opts ...ServerOption) *TestServer {
	srv := NewServer(opts...)
	srv.RegisterRoutes(reg)
	return &TestServer{httptest.NewServer(srv.Handler())}
}

// BaseURL returns the server's base URL.
func (ts *TestServer) BaseURL() string {
	if ts == nil || ts.Server == nil {
		return ""
	}
	return ts.URL
}

// Client returns an httpx Client pointed at the server.
func (ts *TestServer) Client(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithBaseURL(ts.BaseURL())}, opts...)...)
}

package httpx

import (
	"strings"

	"github.com/labstack/echo/v4"
)

type (
	Context        = echo.Context
	HandlerFunc    = echo.HandlerFunc
	MiddlewareFunc = echo.MiddlewareFunc
)

// App is the route table a Server dispatches to.
type App struct{ e *echo.Echo }

func newApp() *App { return &App{e: echo.New()} }

// Use appends middleware run for every request, after routing.
func (a *App) Use(mw ...MiddlewareFunc) { a.e.Use(mw...) }

func (a *App) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.GET(path, h, mw...)
}

func (a *App) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.DELETE(path, h, mw...)
}

// Route is one entry of a route table passed to Mount.
type Route struct {
	Method     string
	Path       string
	Handler    HandlerFunc
	Middleware []MiddlewareFunc
}

// Mount registers every complete route in routes under prefix. Entries
// missing a method, path or handler are skipped.
func (a *App) Mount(prefix string, routes ...Route) {
	prefix = strings.TrimSuffix(prefix, "/")
	for _, r := range routes {
		if r.Handler == nil || r.Path == "" || r.Method == "" {
			continue
		}
		a.e.Add(strings.ToUpper(r.Method), prefix+r.Path, r.Handler, r.Middleware...)
	}
}

// HTTPError builds an error the server renders as {"error": message} with
// the given status.
func HTTPError(code int, message any) error { return echo.NewHTTPError(code, message) }

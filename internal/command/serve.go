package command

import (
	"context"
	"errors"
	"strconv"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/adeilh/go-lsbible/httpx"
	"github.com/adeilh/go-lsbible/lsbible"
)

func ServeCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve scripture over HTTP through the configured cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "listen address, overrides server.address",
				Sources: cli.EnvVars("LSBIBLE_ADDR"),
			},
		},
		Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *Runtime) error {
			addr := rt.Config.Server.Address
			if v := cmd.String("address"); v != "" {
				addr = v
			}

			srv := httpx.NewServer(append(ServerOptions(rt), httpx.WithAddress(addr))...)
			srv.RegisterRoutes(Routes(rt))

			log.WithFields(log.Fields{"address": addr, "backend": rt.Backend.Name}).Info("serving")
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}),
	}
}

// ServerOptions returns the middleware configuration for serving rt.
func ServerOptions(rt *Runtime) []httpx.ServerOption {
	opts := []httpx.ServerOption{
		httpx.WithLogger(log.WithField("component", "http")),
		httpx.WithRequestMetrics(httpx.NewRequestMetrics("lsbible", rt.Registry)),
	}
	if origins := rt.Config.Server.CORSOrigins; len(origins) > 0 {
		opts = append(opts, httpx.WithCORS(origins...))
	}
	return opts
}

// Routes mounts the scripture, cache and ops endpoints backed by rt.
func Routes(rt *Runtime) httpx.RouteRegistrar {
	h := handlers{rt}
	return func(a *httpx.App) {
		a.Mount("",
			httpx.Route{Method: "GET", Path: "/healthz", Handler: h.health},
			httpx.Route{Method: "GET", Path: "/metrics", Handler: httpx.MetricsHandler(rt.Registry)},
			httpx.Route{Method: "GET", Path: "/verses/:book/:chapter/:verse", Handler: h.verse},
			httpx.Route{Method: "GET", Path: "/chapters/:book/:chapter", Handler: h.chapter},
			httpx.Route{Method: "GET", Path: "/passages", Handler: h.passage},
			httpx.Route{Method: "GET", Path: "/search", Handler: h.search},
			httpx.Route{Method: "GET", Path: "/cache/stats", Handler: h.stats},
			httpx.Route{
				Method:     "DELETE",
				Path:       "/cache",
				Handler:    h.clear,
				Middleware: []httpx.MiddlewareFunc{httpx.RequireToken(rt.Config.Server.AdminToken)},
			},
		)
	}
}

type handlers struct{ rt *Runtime }

func (h handlers) health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

func (h handlers) verse(c httpx.Context) error {
	chapter, err := pathInt(c, "chapter")
	if err != nil {
		return err
	}
	verse, err := pathInt(c, "verse")
	if err != nil {
		return err
	}
	p, err := h.rt.Client.GetVerse(c.Request().Context(), c.Param("book"), chapter, verse)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(httpx.StatusOK, p)
}

func (h handlers) chapter(c httpx.Context) error {
	chapter, err := pathInt(c, "chapter")
	if err != nil {
		return err
	}
	p, err := h.rt.Client.GetChapter(c.Request().Context(), c.Param("book"), chapter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(httpx.StatusOK, p)
}

func (h handlers) passage(c httpx.Context) error {
	p, err := h.rt.Client.GetPassage(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(httpx.StatusOK, p)
}

func (h handlers) search(c httpx.Context) error {
	res, err := h.rt.Client.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(httpx.StatusOK, res)
}

func (h handlers) stats(c httpx.Context) error {
	st, err := CollectStats(c.Request().Context(), h.rt.Backend)
	if err != nil {
		return httpx.HTTPError(httpx.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(httpx.StatusOK, st)
}

func (h handlers) clear(c httpx.Context) error {
	if err := h.rt.Client.ClearCache(c.Request().Context()); err != nil {
		return httpx.HTTPError(httpx.StatusServiceUnavailable, err.Error())
	}
	return c.NoContent(httpx.StatusNoContent)
}

func pathInt(c httpx.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, name+" must be a number")
	}
	return v, nil
}

// httpError maps client errors onto response codes. Upstream failures other
// than a missing passage surface as 502.
func httpError(err error) error {
	var apiErr *lsbible.APIError
	switch {
	case errors.Is(err, lsbible.ErrInvalidArgument):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == httpx.StatusNotFound:
		return httpx.HTTPError(httpx.StatusNotFound, err.Error())
	default:
		return httpx.HTTPError(httpx.StatusBadGateway, err.Error())
	}
}

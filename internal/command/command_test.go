package command

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-lsbible/httpx"
	"github.com/adeilh/go-lsbible/internal/config"
	"github.com/adeilh/go-lsbible/lsbible"
)

type fakeAPI struct {
	ts    *httpx.TestServer
	calls atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.ts = httpx.NewAppTestServer(func(a *httpx.App) {
		a.GET("/api/passage", func(c httpx.Context) error {
			f.calls.Add(1)
			q := c.QueryParam("q")
			if q == "Nowhere 1" {
				return c.JSON(httpx.StatusOK, lsbible.SearchResponse{Query: q})
			}
			ref := lsbible.VerseReference{Book: "John", Chapter: 3, Verse: 16}
			return c.JSON(httpx.StatusOK, lsbible.SearchResponse{
				Query: q,
				Passages: []lsbible.Passage{{
					FromRef: ref,
					ToRef:   ref,
					Title:   q,
					Verses: []lsbible.VerseContent{{
						Reference:   ref,
						VerseNumber: 16,
						Segments:    []lsbible.TextSegment{{Text: "For God so loved the world"}},
					}},
				}},
			})
		})
		a.GET("/api/search", func(c httpx.Context) error {
			f.calls.Add(1)
			return c.JSON(httpx.StatusOK, lsbible.SearchResponse{Query: c.QueryParam("q"), MatchCount: 1234})
		})
	}, httpx.WithMiddlewares(httpx.RecoverMiddleware()))
	t.Cleanup(f.ts.Close)
	return f
}

// isolate keeps the developer's own lsbible.yaml out of the test.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv("LSBIBLE_CONFIG", "")
	t.Setenv("LSBIBLE_CACHE", "")
	t.Setenv("LSBIBLE_CACHE_DIR", "")
	t.Setenv("LSBIBLE_ADMIN_TOKEN", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := InitApp(context.Background())
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{"lsbible"}, args...))
	return out.String(), err
}

func TestSplitReference(t *testing.T) {
	book, nums, err := splitReference([]string{"1", "John", "3", "16"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "1 John", book)
	assert.Equal(t, []int{3, 16}, nums)

	_, _, err = splitReference([]string{"John", "three"}, 1)
	assert.ErrorIs(t, err, lsbible.ErrInvalidArgument)

	_, _, err = splitReference([]string{"16"}, 2)
	assert.ErrorIs(t, err, lsbible.ErrInvalidArgument)
}

func TestVerseCommandPrintsText(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	out, err := run(t, "--base-url", api.ts.BaseURL(), "--cache", "none", "verse", "John", "3", "16")
	require.NoError(t, err)
	assert.Equal(t, "John 3:16\n16 For God so loved the world\n", out)
}

func TestSearchCommandJSON(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	out, err := run(t, "--base-url", api.ts.BaseURL(), "--json", "search", "love", "one", "another")
	require.NoError(t, err)
	assert.Contains(t, out, `"query": "love one another"`)
	assert.Contains(t, out, `"matchCount": 1234`)
}

func TestSearchCommandText(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	out, err := run(t, "--base-url", api.ts.BaseURL(), "search", "grace")
	require.NoError(t, err)
	assert.Contains(t, out, `1,234 matches for "grace" in 0 passages`)
}

func TestUnknownCacheFlagFails(t *testing.T) {
	isolate(t)
	_, err := run(t, "--cache", "memcached", "verse", "John", "3", "16")
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestFileCacheSurvivesAcrossRuns(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)
	t.Setenv("LSBIBLE_CACHE_DIR", filepath.Join(t.TempDir(), "cache"))

	for i := 0; i < 2; i++ {
		_, err := run(t, "--base-url", api.ts.BaseURL(), "--cache", "file", "passage", "John", "3:16")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, api.calls.Load())

	out, err := run(t, "--cache", "file", "cache", "stats")
	require.NoError(t, err)
	assert.Equal(t, "backend: file\nentries: 1\n", out)

	out, err = run(t, "--cache", "file", "cache", "clear")
	require.NoError(t, err)
	assert.Equal(t, "cleared file cache\n", out)

	out, err = run(t, "--cache", "file", "--json", "cache", "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"backend":"file","entries":0}`, out)
}

func TestOpenBackendVariants(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{config.BackendNone, config.BackendMemory, config.BackendBounded} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Backend = name
			b, err := OpenBackend(ctx, cfg, nil)
			require.NoError(t, err)
			defer b.Close()

			b.Provider.Set(ctx, "k", []byte(`1`), time.Hour)
			_, hit := b.Provider.Get(ctx, "k")
			assert.Equal(t, name != config.BackendNone, hit)

			want := int64(1)
			if name == config.BackendNone {
				want = 0
			}
			st, err := CollectStats(ctx, b)
			require.NoError(t, err)
			require.NotNil(t, st.Entries)
			assert.Equal(t, want, *st.Entries)
		})
	}

	cfg := config.Default()
	cfg.Cache.Backend = "memcached"
	_, err := OpenBackend(ctx, cfg, nil)
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestOpenBackendWarnsOnUnreachableRedis(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := memory.New()
	prev := log.Log
	log.Log = &log.Logger{Handler: h, Level: log.DebugLevel}
	t.Cleanup(func() { log.Log = prev })

	ctx := context.Background()
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.Redis.Addr = addr

	b, err := OpenBackend(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	var warned bool
	for _, e := range h.Entries {
		if e.Level == log.WarnLevel && e.Fields["provider"] == config.BackendRedis {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for %s", addr)

	_, hit := b.Provider.Get(ctx, "k")
	assert.False(t, hit)
}

func TestSweepFileBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendFile
	cfg.Cache.Dir = t.TempDir()

	b, err := OpenBackend(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	b.Provider.Set(ctx, "stale", []byte(`1`), 0)
	b.Provider.Set(ctx, "fresh", []byte(`1`), time.Hour)

	n, ok, err := Sweep(ctx, b)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)

	cfg.Cache.Backend = config.BackendMemory
	mem, err := OpenBackend(ctx, cfg, nil)
	require.NoError(t, err)
	_, ok, err = Sweep(ctx, mem)
	require.NoError(t, err)
	assert.False(t, ok)
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adeilh/go-lsbible/cache"
	"github.com/adeilh/go-lsbible/internal/testutil/dockertest"
)

func TestMain(m *testing.M) {
	if err := dockertest.Redis.Start(); err != nil {
		fmt.Println("redis integration tests skipped:", err)
	}
	code := m.Run()
	if err := dockertest.Redis.Stop(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: stop redis test container:", err)
	}
	os.Exit(code)
}

// liveStore returns a store on the test server under a prefix unique to t.
func liveStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	if err := dockertest.Redis.Start(); err != nil {
		t.Skip(err)
	}
	store := NewStore(Options{
		Addr:   dockertest.Redis.Addr(),
		Prefix: fmt.Sprintf("it-%s-%d", t.Name(), time.Now().UnixNano()),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(func() {
		cancel()
		_ = store.Close()
	})
	return store, ctx
}

func TestLiveRoundTrip(t *testing.T) {
	store, ctx := liveStore(t)

	key := "passage:john 3:16-18"
	value := []byte(`{"title":"John 3:16-18"}`)
	if err := store.Set(ctx, key, value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil || string(got) != string(value) {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("second Delete() = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get() after Delete = %v, want ErrNotFound", err)
	}
}

func TestLiveExpiry(t *testing.T) {
	store, ctx := liveStore(t)

	if err := store.Set(ctx, "search:love", []byte("{}"), 150*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "zero", []byte("{}"), 0); err != nil {
		t.Fatalf("Set(ttl=0) error = %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	for _, key := range []string{"search:love", "zero"} {
		if _, err := store.Get(ctx, key); !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("Get(%q) after expiry = %v, want ErrNotFound", key, err)
		}
	}
}

func TestLiveClearStaysInPrefix(t *testing.T) {
	store, ctx := liveStore(t)
	other := NewStore(Options{Addr: dockertest.Redis.Addr(), Prefix: store.opts.Prefix + "-other"})
	defer other.Close()

	for i := 0; i < 250; i++ {
		if err := store.Set(ctx, fmt.Sprintf("verse:%d", i), []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := other.Set(ctx, "verse:1", []byte("keep"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Get(ctx, "verse:42"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get() after Clear = %v, want ErrNotFound", err)
	}
	if got, err := other.Get(ctx, "verse:1"); err != nil || string(got) != "keep" {
		t.Fatalf("Clear() reached another prefix: %q, %v", got, err)
	}
	_ = other.Clear(ctx)
}

func TestLiveConcurrentClients(t *testing.T) {
	store, ctx := liveStore(t)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < 32; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("chapter:%d:%d", w, i)
				if err := store.Set(gctx, key, []byte(key), time.Minute); err != nil {
					return fmt.Errorf("set %s: %w", key, err)
				}
				got, err := store.Get(gctx, key)
				if err != nil {
					return fmt.Errorf("get %s: %w", key, err)
				}
				if string(got) != key {
					return fmt.Errorf("get %s = %q", key, got)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestLivePipeline(t *testing.T) {
	store, ctx := liveStore(t)

	p, err := store.Pipeline(ctx)
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}
	defer p.Close()

	p.QueueSet("p1", []byte("v1"), time.Minute)
	p.QueueSet("p2", []byte("v2"), time.Minute)
	p.Queue("MGET", store.key("p1"), store.key("p2"))

	replies, err := p.Exec(ctx)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if len(replies) != 3 {
		t.Fatalf("Exec() returned %d replies, want 3", len(replies))
	}
	if msg, _ := replies[0].(string); !strings.EqualFold(msg, "OK") {
		t.Fatalf("SET reply = %v", replies[0])
	}
	values, ok := replies[2].([]any)
	if !ok || len(values) != 2 {
		t.Fatalf("MGET reply = %#v", replies[2])
	}
	if string(values[0].([]byte)) != "v1" || string(values[1].([]byte)) != "v2" {
		t.Fatalf("MGET values = %v", values)
	}
}

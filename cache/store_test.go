package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	cleared bool
}

func newStubStore() *stubStore {
	return &stubStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *stubStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *stubStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *stubStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string][]byte{}
	s.cleared = true
	return nil
}

type verse struct {
	Book    string   `json:"book"`
	Chapter int      `json:"chapter"`
	Verses  []string `json:"verses"`
}

func TestStoreProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	p := FromStore[verse](store, nil)

	want := verse{Book: "John", Chapter: 3, Verses: []string{"For God so loved the world"}}
	p.Set(ctx, "verse:John 3:16", want, time.Hour)

	got, ok := p.Get(ctx, "verse:John 3:16")
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, time.Hour, store.ttls["verse:John 3:16"])
}

func TestStoreProviderSwallowsFaults(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	p := FromByteStore(store, WithMetrics(metrics), WithName("stub"))

	store.setErr = errors.New("disk full")
	p.Set(ctx, "k", []byte("v"), time.Minute)
	assert.Empty(t, store.data)

	store.setErr = nil
	p.Set(ctx, "k", []byte("v"), time.Minute)

	store.getErr = errors.New("connection reset")
	got, ok := p.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Faults.WithLabelValues("stub", "set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Faults.WithLabelValues("stub", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Sets.WithLabelValues("stub")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Misses.WithLabelValues("stub")))
}

func TestStoreProviderDecodeFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.data["k"] = []byte("not json")

	p := FromStore[verse](store, JSONCodec[verse]{})
	_, ok := p.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStoreProviderCancelledContext(t *testing.T) {
	store := newStubStore()
	p := FromByteStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.Set(ctx, "k", []byte("v"), time.Minute)
	assert.Empty(t, store.data)

	store.data["k"] = []byte("v")
	_, ok := p.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStoreProviderNegativeTTL(t *testing.T) {
	store := newStubStore()
	p := FromByteStore(store)

	p.Set(context.Background(), "k", []byte("v"), -time.Second)
	assert.Equal(t, time.Duration(0), store.ttls["k"])
}

func TestClearDelegates(t *testing.T) {
	ctx := context.Background()

	m := NewMemory[string]()
	m.Set(ctx, "k", "v", time.Minute)
	require.NoError(t, Clear(ctx, m))
	assert.Equal(t, 0, m.Size())

	store := newStubStore()
	p := FromByteStore(store)
	require.NoError(t, Clear(ctx, p))
	assert.True(t, store.cleared)

	assert.NoError(t, Clear(ctx, Noop[string]{}))
	assert.NoError(t, Clear(ctx, struct{}{}))
}

func TestMemoryMetrics(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	m := NewMemory[string](WithClock(clock.Now), WithMetrics(metrics))

	m.Set(ctx, "k", "v", time.Second)
	m.Get(ctx, "k")
	clock.at(clock.Now(), 2)
	m.Get(ctx, "k")
	m.Get(ctx, "absent")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Hits.WithLabelValues("memory")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Misses.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Evictions.WithLabelValues("memory")))
}

func TestEnvelopePayloadRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	cases := map[string][]byte{
		"json object":      []byte(`{"a":1}`),
		"json string":      []byte(`"text"`),
		"spaced json":      []byte("{\"a\": 1}\n"),
		"leading space":    []byte(" 42"),
		"html characters":  []byte(`"<b>&"`),
		"line separator":   []byte("\"a\u2028b\""),
		"invalid utf8 str": []byte("\"\xff\""),
		"plain text":       []byte("not json"),
		"binary":           {0xff, 0x00, 0xfe},
		"empty":            {},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(NewEnvelope(payload, now, time.Second))
			require.NoError(t, err)

			var env Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			assert.Equal(t, payload, env.Payload())
			assert.False(t, env.Expired(now.Add(999*time.Millisecond)))
			assert.True(t, env.Expired(now.Add(time.Second)))
		})
	}
}

func TestEnvelopeEmbedsCompactJSON(t *testing.T) {
	env := NewEnvelope([]byte(`{"title":"John 3:16"}`), time.Now(), time.Minute)
	assert.Equal(t, `{"title":"John 3:16"}`, string(env.Data))
	assert.Empty(t, env.Binary)

	env = NewEnvelope([]byte(`{"title": "John 3:16"}`), time.Now(), time.Minute)
	assert.Empty(t, env.Data)
	assert.Equal(t, []byte(`{"title": "John 3:16"}`), env.Binary)
}

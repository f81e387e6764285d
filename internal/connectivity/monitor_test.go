package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.Online)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.events))
	copy(out, r.events)
	return out
}

func TestManual_OneEventPerEdge(t *testing.T) {
	m := NewManual(false)
	rec := &recorder{}
	m.Subscribe(rec.listen)

	m.SetOnline(false) // no edge
	m.SetOnline(true)
	m.SetOnline(true) // duplicate report
	m.SetOnline(false)
	m.SetOnline(true)

	assert.Equal(t, []bool{true, false, true}, rec.get())
	assert.True(t, m.IsOnline())
}

func TestManual_Unsubscribe(t *testing.T) {
	m := NewManual(true)
	first, second := &recorder{}, &recorder{}
	unsubscribe := m.Subscribe(first.listen)
	m.Subscribe(second.listen)

	m.SetOnline(false)
	unsubscribe()
	unsubscribe() // idempotent
	m.SetOnline(true)

	assert.Equal(t, []bool{false}, first.get())
	assert.Equal(t, []bool{false, true}, second.get())
}

func TestManual_ConcurrentReportsNoDuplicates(t *testing.T) {
	m := NewManual(false)
	var edges atomic.Int32
	m.Subscribe(func(Event) { edges.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SetOnline(true)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), edges.Load())
}

func TestProber_Check(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, time.Hour, time.Second, srv.Client(), nil)
	rec := &recorder{}
	p.Subscribe(rec.listen)
	ctx := context.Background()

	assert.False(t, p.Check(ctx))
	healthy.Store(true)
	assert.True(t, p.Check(ctx))
	assert.True(t, p.Check(ctx))
	healthy.Store(false)
	assert.False(t, p.Check(ctx))

	assert.Equal(t, []bool{true, false}, rec.get())
}

func TestProber_UnreachableIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProber(url, time.Hour, 200*time.Millisecond, nil, nil)
	assert.False(t, p.Check(context.Background()))
	assert.False(t, p.IsOnline())
}

func TestProber_RunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 10*time.Millisecond, time.Second, srv.Client(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, p.IsOnline, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

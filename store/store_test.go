package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modaops/retailfetch/client"
	"github.com/modaops/retailfetch/query"
)

// fakeFetcher counts calls and serves a canned response or error.
type fakeFetcher struct {
	calls    atomic.Int64
	response []byte
	err      error

	entered chan struct{} // closed when the first fetch starts, if set
	release chan struct{} // fetch blocks until closed, if set
}

func (f *fakeFetcher) Fetch(ctx context.Context, d query.Descriptor) ([]byte, error) {
	if f.calls.Add(1) == 1 && f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestGet_FetchesOnMissAndCachesForever(t *testing.T) {
	s := New()
	f := &fakeFetcher{response: []byte(`{"data":[1]}`)}
	key := query.WithPathAndFilters("ventas", "f1", query.Params{"tienda": "R001"})
	ctx := context.Background()

	v1, err := s.Get(ctx, key, f)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(v1) != `{"data":[1]}` {
		t.Errorf("value = %q", v1)
	}

	// Same identity again: served from cache, no second fetch.
	v2, err := s.Get(ctx, key, f)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(v2) != string(v1) {
		t.Errorf("cached value = %q, want %q", v2, v1)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestGet_ConcurrentCallsShareOneFetch(t *testing.T) {
	s := New()
	f := &fakeFetcher{
		response: []byte(`ok`),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	key := query.Simple("productos")
	ctx := context.Background()

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	vals := make([][]byte, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vals[i], errs[i] = s.Get(ctx, key, f)
		}(i)
	}

	// Wait for the flight to start, give the waiters time to attach, then
	// let the single fetch finish.
	<-f.entered
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("Get() #%d error = %v", i, errs[i])
		}
		if string(vals[i]) != "ok" {
			t.Errorf("Get() #%d value = %q", i, vals[i])
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestGet_DifferentIdentitiesFetchIndependently(t *testing.T) {
	s := New()
	f := &fakeFetcher{response: []byte(`ok`)}
	ctx := context.Background()

	if _, err := s.Get(ctx, query.WithPath("ventas", "f1"), f); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := s.Get(ctx, query.WithPath("ventas", "f2"), f); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestGet_ErrorsAreNotCached(t *testing.T) {
	s := New()
	f := &fakeFetcher{err: &client.TransportError{Status: 500, Body: "boom"}}
	key := query.Simple("ventas")
	ctx := context.Background()

	if _, err := s.Get(ctx, key, f); err == nil {
		t.Fatal("Get() error = nil, want transport error")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after failed fetch, want 0", s.Len())
	}

	// The next call retries and succeeds.
	f.err = nil
	f.response = []byte(`ok`)
	v, err := s.Get(ctx, key, f)
	if err != nil {
		t.Fatalf("Get() retry error = %v", err)
	}
	if string(v) != "ok" {
		t.Errorf("retry value = %q", v)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

func TestGet_SoftUnauthorizedCachesNull(t *testing.T) {
	s := New()
	f := &fakeFetcher{err: fmt.Errorf("%w: status 401", client.ErrUnauthorized)}
	key := query.Simple("ventas")
	ctx := context.Background()

	v, err := s.Get(ctx, key, f, WithSoftUnauthorized())
	if err != nil {
		t.Fatalf("Get() error = %v, want nil (soft unauthorized)", err)
	}
	if v != nil {
		t.Errorf("value = %q, want nil", v)
	}

	id, _ := key.Identity()
	e, ok := s.Entry(id)
	if !ok {
		t.Fatal("Entry() not found after soft unauthorized")
	}
	if e.Status != StatusNull {
		t.Errorf("Status = %q, want %q", e.Status, StatusNull)
	}

	// The null entry is served as a hit; no refetch.
	if _, err := s.Get(ctx, key, f, WithSoftUnauthorized()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestGet_HardUnauthorizedPropagates(t *testing.T) {
	s := New()
	f := &fakeFetcher{err: fmt.Errorf("%w: status 401", client.ErrUnauthorized)}
	ctx := context.Background()

	_, err := s.Get(ctx, query.Simple("upload-status"), f)
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("Get() error = %v, want ErrUnauthorized", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (hard unauthorized not cached)", s.Len())
	}
}

func TestGet_InvalidKey(t *testing.T) {
	s := New()
	f := &fakeFetcher{response: []byte(`ok`)}

	_, err := s.Get(context.Background(), query.WithPathAndFilters("ventas", nil, nil), f)
	if !errors.Is(err, query.ErrInvalidKey) {
		t.Fatalf("Get() error = %v, want ErrInvalidKey", err)
	}
	if got := f.calls.Load(); got != 0 {
		t.Errorf("fetch calls = %d, want 0", got)
	}
}

func TestGet_CancelledWaiterDetaches(t *testing.T) {
	s := New()
	f := &fakeFetcher{
		response: []byte(`ok`),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	key := query.Simple("ventas")

	winnerCtx := context.Background()
	winnerDone := make(chan error, 1)
	go func() {
		_, err := s.Get(winnerCtx, key, f)
		winnerDone <- err
	}()
	<-f.entered

	// A second caller attaches, then gives up.
	waiterCtx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := s.Get(waiterCtx, key, f)
		waiterDone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-waiterDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("waiter error = %v, want context.Canceled", err)
	}

	// The flight completes and commits for everyone else.
	close(f.release)
	if err := <-winnerDone; err != nil {
		t.Fatalf("winner error = %v", err)
	}
	id, _ := key.Identity()
	if e, ok := s.Entry(id); !ok || e.Status != StatusResolved {
		t.Errorf("Entry() = %+v, %v; want resolved entry", e, ok)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestGet_WinnerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	s := New()
	f := &fakeFetcher{
		response: []byte(`ok`),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	key := query.Simple("ventas")

	// The caller that starts the flight is cancellable.
	winnerCtx, cancel := context.WithCancel(context.Background())
	winnerDone := make(chan error, 1)
	go func() {
		_, err := s.Get(winnerCtx, key, f)
		winnerDone <- err
	}()
	<-f.entered

	// A second caller attaches with a context that stays live.
	waiterDone := make(chan error, 1)
	var waiterVal []byte
	go func() {
		v, err := s.Get(context.Background(), key, f)
		waiterVal = v
		waiterDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	// The winner gives up mid-flight. Only the winner detaches; the fetch
	// keeps running for the attached waiter.
	cancel()
	if err := <-winnerDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("winner error = %v, want context.Canceled", err)
	}

	close(f.release)
	if err := <-waiterDone; err != nil {
		t.Fatalf("attached waiter error = %v, want nil", err)
	}
	if string(waiterVal) != "ok" {
		t.Errorf("attached waiter value = %q, want ok", waiterVal)
	}

	id, _ := key.Identity()
	if e, ok := s.Entry(id); !ok || e.Status != StatusResolved {
		t.Errorf("Entry() = %+v, %v; want resolved entry after winner cancelled", e, ok)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestGet_HardCallerRejectsCachedNull(t *testing.T) {
	s := New()
	f := &fakeFetcher{err: fmt.Errorf("%w: status 401", client.ErrUnauthorized)}
	key := query.Simple("ventas")
	ctx := context.Background()

	// A soft caller populates the null entry.
	if _, err := s.Get(ctx, key, f, WithSoftUnauthorized()); err != nil {
		t.Fatalf("Get() soft error = %v", err)
	}

	// A hard caller hitting the null entry gets the error, not (nil, nil).
	_, err := s.Get(ctx, key, f)
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("Get() hard error = %v, want ErrUnauthorized", err)
	}

	// Neither call refetched; the null entry itself is untouched.
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	id, _ := key.Identity()
	if e, ok := s.Entry(id); !ok || e.Status != StatusNull {
		t.Errorf("Entry() = %+v, %v; want null entry retained", e, ok)
	}

	// Soft callers keep being served the null.
	if v, err := s.Get(ctx, key, f, WithSoftUnauthorized()); err != nil || v != nil {
		t.Errorf("Get() soft = %q, %v; want nil, nil", v, err)
	}
}

func TestEntry_PendingDuringFlight(t *testing.T) {
	s := New()
	f := &fakeFetcher{
		response: []byte(`ok`),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	key := query.Simple("ventas")
	id, _ := key.Identity()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Get(context.Background(), key, f)
	}()
	<-f.entered

	e, ok := s.Entry(id)
	if !ok || e.Status != StatusPending {
		t.Errorf("Entry() during flight = %+v, %v; want pending", e, ok)
	}

	close(f.release)
	<-done

	e, ok = s.Entry(id)
	if !ok || e.Status != StatusResolved {
		t.Errorf("Entry() after flight = %+v, %v; want resolved", e, ok)
	}
	if e.LastFetchedAt.IsZero() {
		t.Error("LastFetchedAt is zero on resolved entry")
	}
}

func TestFlush(t *testing.T) {
	s := New()
	f := &fakeFetcher{response: []byte(`ok`)}
	ctx := context.Background()

	if _, err := s.Get(ctx, query.Simple("ventas"), f); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	s.Flush()
	if s.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", s.Len())
	}

	if _, err := s.Get(ctx, query.Simple("ventas"), f); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

type countingMetrics struct {
	hits, misses, fetches atomic.Int64
}

func (m *countingMetrics) RecordHit(ctx context.Context, endpoint string) { m.hits.Add(1) }

func (m *countingMetrics) RecordMiss(ctx context.Context, endpoint string) { m.misses.Add(1) }

func (m *countingMetrics) RecordFetch(ctx context.Context, endpoint string, d time.Duration, err error) {
	m.fetches.Add(1)
}

func TestGet_RecordsMetrics(t *testing.T) {
	m := &countingMetrics{}
	s := New(WithMetrics(m))
	f := &fakeFetcher{response: []byte(`ok`)}
	key := query.Simple("ventas")
	ctx := context.Background()

	s.Get(ctx, key, f)
	s.Get(ctx, key, f)

	if got := m.misses.Load(); got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
	if got := m.hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
	if got := m.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

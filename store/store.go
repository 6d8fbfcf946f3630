package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/modaops/retailfetch/client"
	"github.com/modaops/retailfetch/query"
)

// Fetcher performs the network operation for a resolved descriptor.
// Implemented by client.Client.
type Fetcher interface {
	Fetch(ctx context.Context, d query.Descriptor) ([]byte, error)
}

// Metrics receives cache events. Implemented by observe.QueryMetrics.
type Metrics interface {
	RecordHit(ctx context.Context, endpoint string)
	RecordMiss(ctx context.Context, endpoint string)
	RecordFetch(ctx context.Context, endpoint string, duration time.Duration, err error)
}

// Status describes the state of a cache entry.
type Status string

const (
	// StatusPending means a fetch for the identity is in flight.
	StatusPending Status = "pending"

	// StatusResolved means the entry holds a fetched value.
	StatusResolved Status = "resolved"

	// StatusNull means an unauthorized fetch was soft-failed and cached as a
	// nil value.
	StatusNull Status = "null"
)

// Entry is the stored result for one canonical identity.
type Entry struct {
	Identity      string
	Status        Status
	Value         []byte
	LastFetchedAt time.Time
}

// Store holds one entry per canonical identity.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Get honors cancellation; a cancelled caller detaches while the
//   shared fetch runs to completion and is cached for the others.
// - Errors: fetch errors propagate and are never stored.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	pending map[string]int

	group   singleflight.Group
	metrics Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches cache metrics recording.
func WithMetrics(m Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*Entry),
		pending: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOption configures a single Get call.
type GetOption func(*getOptions)

type getOptions struct {
	softUnauthorized bool
}

// WithSoftUnauthorized makes an unauthorized fetch resolve to a cached nil
// value instead of an error. Used by passive read widgets; calls that require
// authentication omit it and receive the error.
func WithSoftUnauthorized() GetOption {
	return func(o *getOptions) { o.softUnauthorized = true }
}

// Get returns the cached value for the key's identity, fetching it on a miss.
//
// Concurrent calls for the same identity share one fetch. A resolved entry is
// served indefinitely without refetching. A fetch error is returned to every
// waiter and nothing is cached, so a later call retries.
func (s *Store) Get(ctx context.Context, key query.Key, f Fetcher, opts ...GetOption) ([]byte, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	id, err := key.Identity()
	if err != nil {
		return nil, err
	}

	if e, ok := s.lookup(id); ok {
		// A null entry stands in for an unauthorized result. Callers that
		// did not opt into the soft policy get the error, not a silent nil.
		if e.Status == StatusNull && !o.softUnauthorized {
			return nil, fmt.Errorf("%w: cached null result", client.ErrUnauthorized)
		}
		if s.metrics != nil {
			s.metrics.RecordHit(ctx, key.Endpoint())
		}
		return e.Value, nil
	}
	if s.metrics != nil {
		s.metrics.RecordMiss(ctx, key.Endpoint())
	}

	// The flight runs detached from the starting caller's cancellation: one
	// waiter giving up must not abort the fetch for the others still attached.
	s.markPending(id, +1)
	ch := s.group.DoChan(id, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), key, id, f)
	})

	select {
	case res := <-ch:
		s.markPending(id, -1)
		if res.Err != nil {
			return nil, s.applyUnauthorizedPolicy(id, res.Err, o)
		}
		return res.Val.([]byte), nil

	case <-ctx.Done():
		// Detach: the flight keeps running and commits for other waiters.
		s.markPending(id, -1)
		return nil, ctx.Err()
	}
}

// fetch is the singleflight body: it performs the network operation and
// commits the result. It receives a context detached from every caller, so a
// started fetch always runs to completion and is cached for reuse.
func (s *Store) fetch(ctx context.Context, key query.Key, id string, f Fetcher) (any, error) {
	d, err := key.Resolve()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := f.Fetch(ctx, d)
	if s.metrics != nil {
		s.metrics.RecordFetch(ctx, key.Endpoint(), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	s.commit(id, StatusResolved, raw)
	return raw, nil
}

// applyUnauthorizedPolicy resolves a fetch error against the caller's policy:
// soft unauthorized commits a nil value, everything else propagates.
func (s *Store) applyUnauthorizedPolicy(id string, err error, o getOptions) error {
	if o.softUnauthorized && errors.Is(err, client.ErrUnauthorized) {
		s.commit(id, StatusNull, nil)
		return nil
	}
	return err
}

// Entry returns the entry for an identity, if any. A pending fetch with no
// prior resolved value reports StatusPending.
func (s *Store) Entry(identity string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[identity]; ok {
		return *e, true
	}
	if s.pending[identity] > 0 {
		return Entry{Identity: identity, Status: StatusPending}, true
	}
	return Entry{}, false
}

// Len returns the number of resolved entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush drops every entry. Widgets never need this: scope mutations redirect
// them to new identities. It exists for operational tooling.
func (s *Store) Flush() {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
}

func (s *Store) lookup(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *Store) commit(id string, status Status, value []byte) {
	s.mu.Lock()
	s.entries[id] = &Entry{
		Identity:      id,
		Status:        status,
		Value:         value,
		LastFetchedAt: time.Now(),
	}
	s.mu.Unlock()
}

func (s *Store) markPending(id string, delta int) {
	s.mu.Lock()
	s.pending[id] += delta
	if s.pending[id] <= 0 {
		delete(s.pending, id)
	}
	s.mu.Unlock()
}

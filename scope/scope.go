package scope

import (
	"sync"

	"github.com/modaops/retailfetch/query"
)

// Scope owns the active dataset identifier and filter set.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: all mutation operations are total; they cannot fail.
// - Ownership: widgets read; only the upload controller (on success) and the
//   filter-editing surface write.
type Scope struct {
	mu        sync.RWMutex
	datasetID string
	filters   query.Params
}

// New creates a Scope with no dataset and no filters.
func New() *Scope {
	return &Scope{filters: query.Params{}}
}

// DatasetID returns the active dataset identifier, empty until an upload
// succeeds.
func (s *Scope) DatasetID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasetID
}

// SetDatasetID replaces the active dataset identifier.
func (s *Scope) SetDatasetID(id string) {
	s.mu.Lock()
	s.datasetID = id
	s.mu.Unlock()
}

// Filters returns a copy of the active filter set.
func (s *Scope) Filters() query.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.Clone()
}

// SetFilters replaces the filter set wholesale.
func (s *Scope) SetFilters(filters query.Params) {
	s.mu.Lock()
	if filters == nil {
		s.filters = query.Params{}
	} else {
		s.filters = filters.Clone()
	}
	s.mu.Unlock()
}

// UpdateFilter merges a single key into the filter set, replacing its value.
// The value may be a scalar, a slice of scalars, or nil (which clears the
// filter without removing the key from later reads).
func (s *Scope) UpdateFilter(key string, value any) {
	switch vv := value.(type) {
	case []string:
		value = append([]string(nil), vv...)
	case []any:
		value = append([]any(nil), vv...)
	}

	s.mu.Lock()
	s.filters[key] = value
	s.mu.Unlock()
}

// ClearFilters replaces the filter set with an empty one.
func (s *Scope) ClearFilters() {
	s.mu.Lock()
	s.filters = query.Params{}
	s.mu.Unlock()
}

// KeyFor builds the query key a widget uses for a dataset-scoped aggregate
// endpoint: the dataset id as the path segment and the active filters as the
// query string. Returns ErrNoDataset before any dataset is loaded.
func (s *Scope) KeyFor(endpoint string) (query.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.datasetID == "" {
		return query.Key{}, query.ErrNoDataset
	}
	return query.WithPathAndFilters(endpoint, s.datasetID, s.filters), nil
}

// BareKeyFor builds a dataset-scoped key without the filter set, for
// endpoints that ignore filters (e.g. dataset metadata).
func (s *Scope) BareKeyFor(endpoint string) (query.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.datasetID == "" {
		return query.Key{}, query.ErrNoDataset
	}
	return query.WithPath(endpoint, s.datasetID), nil
}

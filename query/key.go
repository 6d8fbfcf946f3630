package query

import (
	"fmt"
	"strconv"
	"strings"
)

// keyKind discriminates the key variants. Resolution switches exhaustively on
// it instead of inspecting the runtime shape of the parts.
type keyKind int

const (
	kindSimple keyKind = iota
	kindWithPath
	kindWithFilters
	kindWithPathAndFilters
)

// Key identifies one logical read: an endpoint plus an optional path parameter
// and an optional filter mapping. Keys are built through the constructors
// below and are immutable afterwards.
type Key struct {
	kind     keyKind
	endpoint string
	path     any
	filters  Params
}

// Simple builds a key for a bare endpoint with no path segment or filters.
func Simple(endpoint string) Key {
	return Key{kind: kindSimple, endpoint: endpoint}
}

// WithPath builds a key whose second part is appended as a path segment.
// path must be a string or an integer.
func WithPath(endpoint string, path any) Key {
	return Key{kind: kindWithPath, endpoint: endpoint, path: path}
}

// WithFilters builds a key whose second part is a filter mapping serialized
// into the query string.
func WithFilters(endpoint string, filters Params) Key {
	return Key{kind: kindWithFilters, endpoint: endpoint, filters: filters.Clone()}
}

// WithPathAndFilters builds a key with both a path segment and a filter
// mapping. Unlike WithPath, a nil path parameter here resolves to ErrInvalidKey
// rather than being treated as a filter mapping.
func WithPathAndFilters(endpoint string, path any, filters Params) Key {
	return Key{kind: kindWithPathAndFilters, endpoint: endpoint, path: path, filters: filters.Clone()}
}

// Endpoint returns the key's endpoint name.
func (k Key) Endpoint() string { return k.endpoint }

// Resolve derives the request descriptor for the key.
func (k Key) Resolve() (Descriptor, error) {
	if err := validateEndpoint(k.endpoint); err != nil {
		return Descriptor{}, err
	}

	var url string
	switch k.kind {
	case kindSimple:
		url = k.endpoint
	case kindWithPath:
		seg, err := pathSegment(k.path)
		if err != nil {
			return Descriptor{}, err
		}
		url = k.endpoint + "/" + seg
	case kindWithFilters:
		url = k.endpoint
		if qs := k.filters.Encode(); qs != "" {
			url += "?" + qs
		}
	case kindWithPathAndFilters:
		seg, err := pathSegment(k.path)
		if err != nil {
			return Descriptor{}, err
		}
		url = k.endpoint + "/" + seg
		if qs := k.filters.Encode(); qs != "" {
			url += "?" + qs
		}
	default:
		return Descriptor{}, ErrInvalidKey
	}

	if len(url) > MaxIdentityLength {
		return Descriptor{}, ErrIdentityTooLong
	}
	return Descriptor{Method: "GET", URL: url}, nil
}

// Identity returns the canonical identity of the key: the resolved URL with
// its sorted-key query string. Keys that differ only in filter insertion order
// or in omitted-vs-nil filter values share an identity.
func (k Key) Identity() (string, error) {
	d, err := k.Resolve()
	if err != nil {
		return "", err
	}
	return d.URL, nil
}

// String implements fmt.Stringer for logging. Invalid keys render as a
// best-effort description rather than an error.
func (k Key) String() string {
	id, err := k.Identity()
	if err != nil {
		return fmt.Sprintf("invalid key (%s)", k.endpoint)
	}
	return id
}

// pathSegment renders a path parameter. Only strings and integers are
// accepted; anything else, including nil and "", is ErrInvalidKey.
func pathSegment(v any) (string, error) {
	switch vv := v.(type) {
	case string:
		if vv == "" {
			return "", fmt.Errorf("%w: empty path parameter", ErrInvalidKey)
		}
		return vv, nil
	case int:
		return strconv.Itoa(vv), nil
	case int64:
		return strconv.FormatInt(vv, 10), nil
	case nil:
		return "", fmt.Errorf("%w: missing path parameter", ErrInvalidKey)
	default:
		return "", fmt.Errorf("%w: path parameter must be a string or integer, got %T", ErrInvalidKey, v)
	}
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" || strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: empty endpoint", ErrInvalidKey)
	}
	if strings.ContainsAny(endpoint, "\n\r") {
		return fmt.Errorf("%w: endpoint contains line breaks", ErrInvalidKey)
	}
	return nil
}

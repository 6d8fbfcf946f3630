package query

import "errors"

// MaxIdentityLength is the maximum allowed length for a canonical identity.
const MaxIdentityLength = 2048

// Sentinel errors for key resolution.
var (
	// ErrInvalidKey indicates a malformed key: an empty endpoint, a missing
	// required path parameter, or a path parameter of an unsupported type.
	ErrInvalidKey = errors.New("query: key is invalid")

	// ErrIdentityTooLong indicates the resolved identity exceeds MaxIdentityLength.
	ErrIdentityTooLong = errors.New("query: identity exceeds max length")

	// ErrNoDataset indicates a dataset-scoped key was requested before any
	// dataset was loaded.
	ErrNoDataset = errors.New("query: no dataset loaded")
)

// Package query turns structured query keys into request descriptors and
// canonical cache identities.
//
// A Key names one logical read: an endpoint, an optional path parameter, and
// an optional filter mapping. Its Identity is a deterministic serialization
// used for cache lookup and request deduplication.
package query

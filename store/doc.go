// Package store caches read results by canonical query identity.
//
// It guarantees at most one in-flight fetch per identity: concurrent calls
// for the same identity share a single network operation. Resolved entries
// never expire; the shared filter scope invalidates by changing identities,
// not by evicting entries. Failed fetches are never cached, so the next call
// for the same identity retries.
package store

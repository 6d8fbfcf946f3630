// Package scope holds the shared dataset and filter state every widget
// embeds into its query keys.
//
// Mutating the scope changes the identity each dependent widget resolves to,
// which transparently redirects cache lookups to new-or-cached entries. This
// is the system's sole invalidation mechanism; there is no per-entry
// invalidation API.
package scope

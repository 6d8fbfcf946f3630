// Package client is the HTTP transport for dashboard reads and the upload
// write. Every request is sent with session cookies; authentication itself is
// enforced by the backend.
package client

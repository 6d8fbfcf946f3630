package query

// Descriptor is a resolved request: what to send, independent of transport
// configuration such as base URL or credentials.
type Descriptor struct {
	// Method is the HTTP method. Reads resolve to GET; the upload write path
	// builds its descriptor explicitly.
	Method string

	// URL is the endpoint-relative URL, including the canonical query string.
	URL string

	// Body is the request body for writes. Nil for reads.
	Body []byte

	// ContentType is the body's media type. Empty for reads.
	ContentType string
}

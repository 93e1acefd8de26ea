package presigned

import "time"

// Option configures a Signer.
type Option func(*Signer)

// WithSecretKey sets the HMAC signing secret. Signing fails without one.
func WithSecretKey(key []byte) Option {
	return func(s *Signer) {
		s.secretKey = key
	}
}

// WithBaseURL prepends a base URL (scheme and host) to signed paths.
func WithBaseURL(baseURL string) Option {
	return func(s *Signer) {
		s.baseURL = baseURL
	}
}

// WithPathPrefix sets the URL path prefix under which signed blobs are
// served. Defaults to "/blobs/".
func WithPathPrefix(prefix string) Option {
	return func(s *Signer) {
		s.pathPrefix = prefix
	}
}

// WithDefaultExpiration sets the TTL used when SignGetURL receives zero.
func WithDefaultExpiration(d time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = d
	}
}

// WithClock injects the time source, making signatures deterministic for
// tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

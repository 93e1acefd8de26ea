// Package presigned issues and validates HMAC-signed, time-limited read URLs
// for blob keys on backends without native presigning (filesystem, memory).
// S3 deployments use the S3 presign client instead.
package presigned

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signer generates and validates HMAC-signed presigned URLs. It is a pure
// function of (key, clock, secret): with an injected clock, signing is
// deterministic. It never checks that the signed key exists.
type Signer struct {
	secretKey         []byte
	baseURL           string
	pathPrefix        string
	defaultExpiration time.Duration
	now               func() time.Time
}

// New creates a new Signer with the given options.
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: 1 * time.Hour,
		pathPrefix:        "/blobs/",
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignGetURL returns a signed read URL for the blob key, valid for ttl. A
// zero ttl uses the signer's default expiration.
func (s *Signer) SignGetURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}
	if ttl <= 0 {
		ttl = s.defaultExpiration
	}

	expiresAt := s.now().Add(ttl).Unix()
	path := s.pathPrefix + objectKey
	signature := s.sign(signingPayload(http.MethodGet, path, expiresAt))

	return fmt.Sprintf("%s%s?signature=%s&expires=%d", s.baseURL, path, signature, expiresAt), nil
}

// ValidateRequest checks the signature and expiration of an inbound read
// request and returns the object key it grants access to.
func (s *Signer) ValidateRequest(r *http.Request) (string, error) {
	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return "", ErrMissingSignature
	}
	if expiresStr == "" {
		return "", ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	if err := s.Validate(r.Method, r.URL.Path, signature, expiresAt); err != nil {
		return "", err
	}

	key, err := s.objectKeyFromPath(r.URL.Path)
	if err != nil {
		return "", err
	}
	return key, nil
}

// Validate checks a signature and expiration for the given method and path.
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.sign(signingPayload(method, path, expiresAt))

	// Constant-time comparison to prevent timing attacks.
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

func (s *Signer) objectKeyFromPath(path string) (string, error) {
	if len(path) <= len(s.pathPrefix) || path[:len(s.pathPrefix)] != s.pathPrefix {
		return "", fmt.Errorf("path %q does not match signer prefix %q", path, s.pathPrefix)
	}
	return path[len(s.pathPrefix):], nil
}

func signingPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) sign(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

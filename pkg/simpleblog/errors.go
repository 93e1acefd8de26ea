package simpleblog

import (
	"errors"
	"fmt"
	"time"
)

// Error types
var (
	// ErrBlogNotFound indicates the blog does not exist or is soft-deleted.
	ErrBlogNotFound = errors.New("blog not found")

	// ErrBlobNotFound indicates a blob store key has no object behind it.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrDuplicateTitle indicates a uniqueness violation at the metadata layer.
	ErrDuplicateTitle = errors.New("blog title already exists")

	// ErrMissingCredential indicates no API credential was supplied.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential indicates the supplied credential did not match.
	ErrInvalidCredential = errors.New("invalid credential")
)

// BlogError represents an error related to a blog lifecycle operation.
type BlogError struct {
	BlogID int64
	Op     string
	Err    error
}

func (e *BlogError) Error() string {
	return fmt.Sprintf("blog operation %s failed for blog %d: %v", e.Op, e.BlogID, e.Err)
}

func (e *BlogError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob or metadata store I/O.
// Multi-step flows re-raise it after compensation, never swallow it.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError represents malformed or missing input, rejected before the
// orchestrator runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RateLimitError indicates a tier quota was exceeded. RetryAfter is the time
// remaining in the current window.
type RateLimitError struct {
	Tier       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for tier %s (max %d), retry after %s", e.Tier, e.Limit, e.RetryAfter)
}

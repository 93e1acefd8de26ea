package simpleblog

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for blob storage backends.
type BlobStore interface {
	// Upload writes the blob under objectKey, overwriting in place.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads a blob with an explicit content type.
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download returns the blob bytes, or ErrBlobNotFound.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, objectKey string) error

	// DeleteByPrefix removes every blob under the prefix and reports how
	// many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// Exists reports whether a blob is stored under objectKey.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// GetObjectMeta retrieves storage-level metadata for a blob.
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// URLSigner issues short-lived read URLs for private blobs. It does not
// verify the key exists; callers confirm existence through the metadata
// store first.
type URLSigner interface {
	// SignGetURL returns a signed read URL valid for ttl. A zero ttl uses
	// the signer's default (one hour).
	SignGetURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Repository defines the interface for blog metadata persistence.
type Repository interface {
	// CreateBlog inserts the row and assigns blog.ID. IDs are never reused.
	CreateBlog(ctx context.Context, blog *Blog) error

	// GetBlog returns the blog, or ErrBlogNotFound when missing. Soft-deleted
	// rows are excluded unless includeDeleted is set.
	GetBlog(ctx context.Context, id int64, includeDeleted bool) (*Blog, error)

	// ListBlogs returns one page of matching blogs plus the total match count.
	ListBlogs(ctx context.Context, filter BlogFilter) ([]*Blog, int, error)

	// UpdateBlog persists the row as given and refreshes UpdatedAt.
	UpdateBlog(ctx context.Context, blog *Blog) error

	// IncrementViews bumps the view counter atomically at the store level and
	// returns the new count. Concurrent increments are never lost.
	IncrementViews(ctx context.Context, id int64) (int64, error)

	// SoftDeleteBlog stamps DeletedAt and returns the updated row.
	SoftDeleteBlog(ctx context.Context, id int64) (*Blog, error)

	// RestoreBlog clears DeletedAt on a soft-deleted row.
	RestoreBlog(ctx context.Context, id int64) (*Blog, error)

	// HardDeleteBlog removes the row permanently.
	HardDeleteBlog(ctx context.Context, id int64) error
}

// Cache is an optional key/value layer over list and single-item results.
// Deployments without one use NewNoopCache, and every operation degrades to
// a no-op.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeleteByPrefix(ctx context.Context, prefix string)
}

// EventSink defines the interface for lifecycle event handling. Events are
// fired best-effort; a failing sink never fails the operation.
type EventSink interface {
	BlogCreated(ctx context.Context, blog *Blog) error
	BlogUpdated(ctx context.Context, blog *Blog) error
	BlogDeleted(ctx context.Context, blogID int64) error
	BlogViewed(ctx context.Context, blogID int64, views int64) error
}

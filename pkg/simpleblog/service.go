package simpleblog

import "context"

// Service is the blog lifecycle orchestrator. It sequences metadata and blob
// store operations for every flow and owns the compensating actions taken on
// partial failure; it never takes locks across the two stores.
type Service interface {
	// CreateBlog inserts a provisional row, uploads the sanitized content and
	// optional cover, then commits the blob keys. If any upload fails after
	// the row exists, the row is removed again and the original storage error
	// is returned.
	CreateBlog(ctx context.Context, req CreateBlogRequest) (*Blog, error)

	// GetBlog returns a visible blog with a presigned cover URL when a cover
	// is set. The view counter is incremented asynchronously; a failure there
	// is logged and discarded.
	GetBlog(ctx context.Context, id int64) (*Blog, error)

	// GetBlogContent is GetBlog plus the content bytes, returned verbatim
	// (sanitized at write time).
	GetBlogContent(ctx context.Context, id int64) (*Blog, []byte, error)

	// ListBlogs returns one page of visible blogs and the total match count.
	ListBlogs(ctx context.Context, req ListBlogsRequest) ([]*Blog, int, error)

	// SearchBlogs lists visible blogs whose title matches the query.
	SearchBlogs(ctx context.Context, query string, page, pageSize int) ([]*Blog, int, error)

	// LatestBlogs returns up to limit visible blogs, newest first.
	LatestBlogs(ctx context.Context, limit int) ([]*Blog, error)

	// PopularBlogs returns up to limit visible blogs, most viewed first.
	PopularBlogs(ctx context.Context, limit int) ([]*Blog, error)

	// UpdateBlog applies a partial update: supplied blobs overwrite in place
	// under the deterministic keys, supplied scalars replace, everything else
	// is left untouched.
	UpdateBlog(ctx context.Context, req UpdateBlogRequest) (*Blog, error)

	// SoftDeleteBlog hides the blog from public reads. Blobs stay intact.
	SoftDeleteBlog(ctx context.Context, id int64) error

	// RestoreBlog reverses a soft delete. Administrative only.
	RestoreBlog(ctx context.Context, id int64) (*Blog, error)

	// HardDeleteBlog removes blobs first, then the row. If blob deletion
	// fails the metadata row is left untouched and the storage error is
	// surfaced.
	HardDeleteBlog(ctx context.Context, id int64) error
}

package simpleblog

// CreateBlogRequest contains parameters for creating a blog. Content is the
// raw HTML as uploaded; the service sanitizes it before it reaches the blob
// store.
type CreateBlogRequest struct {
	Title            string
	Tags             []string
	ReadTime         *int
	Content          []byte
	Cover            []byte
	CoverContentType string
}

// UpdateBlogRequest contains parameters for a partial update. Nil fields are
// left untouched; non-nil blobs overwrite in place under the existing keys.
type UpdateBlogRequest struct {
	ID               int64
	Title            *string
	Tags             []string
	ReadTime         *int
	Content          []byte
	Cover            []byte
	CoverContentType string
}

// ListBlogsRequest contains parameters for listing blogs.
type ListBlogsRequest struct {
	Tags     []string
	Query    string
	SortBy   string
	Page     int
	PageSize int
}

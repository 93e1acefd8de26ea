package simpleblog

import "time"

// Blog is the single persistent entity: one row of metadata plus the blob
// keys that point at its content and optional cover in the blob store.
type Blog struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Tags       []string   `json:"tags"`
	ContentKey string     `json:"content_key,omitempty"`
	CoverKey   string     `json:"cover_key,omitempty"`
	ReadTime   *int       `json:"read_time,omitempty"`
	Views      int64      `json:"views"`
	Likes      int64      `json:"likes"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`

	// CoverURL is a presigned read URL for the cover blob. Computed by the
	// service layer, never persisted.
	CoverURL string `json:"cover_url,omitempty"`
}

// Visible reports whether the blog is part of public read paths.
func (b *Blog) Visible() bool {
	return b.DeletedAt == nil
}

// Sort orders accepted by Repository.ListBlogs.
const (
	SortByCreatedAt = "created_at"
	SortByViews     = "views"
)

// Pagination bounds enforced before the repository is reached.
const (
	MinPageSize = 1
	MaxPageSize = 100
)

// BlogFilter selects and orders blogs for list operations. Pagination is
// 1-based; callers validate Page and PageSize before handing the filter to a
// repository.
type BlogFilter struct {
	// Tags is a subset match: a blog qualifies only when it carries every
	// listed tag.
	Tags []string
	// Query matches against the title, case-insensitively.
	Query string
	// SortBy is one of SortByCreatedAt (default) or SortByViews; both
	// descending.
	SortBy string
	Page     int
	PageSize int
	// IncludeDeleted admits soft-deleted rows. Administrative use only.
	IncludeDeleted bool
}

// Offset converts the 1-based page number into a row offset.
func (f BlogFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.PageSize
}

// ObjectMeta describes a blob as reported by the blob store.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams carries the target key and declared content type for a blob
// upload.
type UploadParams struct {
	ObjectKey   string
	ContentType string
}

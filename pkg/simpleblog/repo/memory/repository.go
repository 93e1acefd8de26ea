// Package memory provides an in-memory Repository, mirroring the postgres
// semantics. Used for tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Repository implements simpleblog.Repository in process memory.
type Repository struct {
	mu     sync.Mutex
	blogs  map[int64]*simpleblog.Blog
	nextID int64
	now    func() time.Time
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		blogs:  make(map[int64]*simpleblog.Blog),
		nextID: 1,
		now:    time.Now,
	}
}

// WithClock injects the time source. Used by tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func (r *Repository) CreateBlog(ctx context.Context, blog *simpleblog.Blog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.blogs {
		if existing.Title == blog.Title {
			return simpleblog.ErrDuplicateTitle
		}
	}

	// IDs increase monotonically and are never reused, even after hard
	// delete.
	blog.ID = r.nextID
	r.nextID++

	r.blogs[blog.ID] = copyBlog(blog)
	return nil
}

func (r *Repository) GetBlog(ctx context.Context, id int64, includeDeleted bool) (*simpleblog.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blog, ok := r.blogs[id]
	if !ok || (!includeDeleted && blog.DeletedAt != nil) {
		return nil, simpleblog.ErrBlogNotFound
	}
	return copyBlog(blog), nil
}

func (r *Repository) ListBlogs(ctx context.Context, filter simpleblog.BlogFilter) ([]*simpleblog.Blog, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*simpleblog.Blog
	for _, blog := range r.blogs {
		if !filter.IncludeDeleted && blog.DeletedAt != nil {
			continue
		}
		if !hasAllTags(blog.Tags, filter.Tags) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(blog.Title), strings.ToLower(filter.Query)) {
			continue
		}
		matched = append(matched, copyBlog(blog))
	}

	switch filter.SortBy {
	case simpleblog.SortByViews:
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Views != matched[j].Views {
				return matched[i].Views > matched[j].Views
			}
			return matched[i].ID > matched[j].ID
		})
	default:
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID > matched[j].ID
		})
	}

	total := len(matched)
	offset := filter.Offset()
	if offset >= total {
		return []*simpleblog.Blog{}, total, nil
	}
	end := offset + filter.PageSize
	if filter.PageSize <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *Repository) UpdateBlog(ctx context.Context, blog *simpleblog.Blog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.blogs[blog.ID]
	if !ok {
		return simpleblog.ErrBlogNotFound
	}

	for id, existing := range r.blogs {
		if id != blog.ID && existing.Title == blog.Title {
			return simpleblog.ErrDuplicateTitle
		}
	}

	updated := copyBlog(blog)
	// Views and likes only move through their own operations.
	updated.Views = stored.Views
	updated.Likes = stored.Likes
	updated.CreatedAt = stored.CreatedAt
	r.blogs[blog.ID] = updated
	return nil
}

func (r *Repository) IncrementViews(ctx context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blog, ok := r.blogs[id]
	if !ok || blog.DeletedAt != nil {
		return 0, simpleblog.ErrBlogNotFound
	}
	blog.Views++
	return blog.Views, nil
}

func (r *Repository) SoftDeleteBlog(ctx context.Context, id int64) (*simpleblog.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blog, ok := r.blogs[id]
	if !ok || blog.DeletedAt != nil {
		return nil, simpleblog.ErrBlogNotFound
	}
	now := r.now().UTC()
	blog.DeletedAt = &now
	blog.UpdatedAt = now
	return copyBlog(blog), nil
}

func (r *Repository) RestoreBlog(ctx context.Context, id int64) (*simpleblog.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blog, ok := r.blogs[id]
	if !ok {
		return nil, simpleblog.ErrBlogNotFound
	}
	blog.DeletedAt = nil
	blog.UpdatedAt = r.now().UTC()
	return copyBlog(blog), nil
}

func (r *Repository) HardDeleteBlog(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blogs[id]; !ok {
		return simpleblog.ErrBlogNotFound
	}
	delete(r.blogs, id)
	return nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, tag := range have {
		set[tag] = struct{}{}
	}
	for _, tag := range want {
		if _, ok := set[tag]; !ok {
			return false
		}
	}
	return true
}

func copyBlog(blog *simpleblog.Blog) *simpleblog.Blog {
	out := *blog
	out.Tags = append([]string(nil), blog.Tags...)
	if blog.ReadTime != nil {
		rt := *blog.ReadTime
		out.ReadTime = &rt
	}
	if blog.DeletedAt != nil {
		dt := *blog.DeletedAt
		out.DeletedAt = &dt
	}
	return &out
}

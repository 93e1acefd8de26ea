package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

func newBlog(title string, tags ...string) *simpleblog.Blog {
	now := time.Now().UTC()
	return &simpleblog.Blog{
		Title:     title,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateBlogAssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := New()

	first := newBlog("first")
	require.NoError(t, repo.CreateBlog(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	second := newBlog("second")
	require.NoError(t, repo.CreateBlog(ctx, second))
	assert.Equal(t, int64(2), second.ID)
}

func TestIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	repo := New()

	first := newBlog("first")
	require.NoError(t, repo.CreateBlog(ctx, first))
	require.NoError(t, repo.HardDeleteBlog(ctx, first.ID))

	second := newBlog("second")
	require.NoError(t, repo.CreateBlog(ctx, second))
	assert.Equal(t, int64(2), second.ID)
}

func TestCreateBlogDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	repo := New()

	require.NoError(t, repo.CreateBlog(ctx, newBlog("same")))
	err := repo.CreateBlog(ctx, newBlog("same"))
	assert.ErrorIs(t, err, simpleblog.ErrDuplicateTitle)
}

func TestGetBlog(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("readable")
	require.NoError(t, repo.CreateBlog(ctx, blog))

	got, err := repo.GetBlog(ctx, blog.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "readable", got.Title)

	_, err = repo.GetBlog(ctx, 999, false)
	assert.ErrorIs(t, err, simpleblog.ErrBlogNotFound)
}

func TestGetBlogReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("original", "go")
	require.NoError(t, repo.CreateBlog(ctx, blog))

	got, err := repo.GetBlog(ctx, blog.ID, false)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Tags[0] = "mutated"

	fresh, err := repo.GetBlog(ctx, blog.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Title)
	assert.Equal(t, []string{"go"}, fresh.Tags)
}

func TestSoftDeleteHidesBlog(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("hidden")
	require.NoError(t, repo.CreateBlog(ctx, blog))

	deleted, err := repo.SoftDeleteBlog(ctx, blog.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	_, err = repo.GetBlog(ctx, blog.ID, false)
	assert.ErrorIs(t, err, simpleblog.ErrBlogNotFound)

	// Still reachable with includeDeleted.
	got, err := repo.GetBlog(ctx, blog.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	// Double soft delete fails.
	_, err = repo.SoftDeleteBlog(ctx, blog.ID)
	assert.ErrorIs(t, err, simpleblog.ErrBlogNotFound)
}

func TestRestoreBlog(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("restorable")
	require.NoError(t, repo.CreateBlog(ctx, blog))
	_, err := repo.SoftDeleteBlog(ctx, blog.ID)
	require.NoError(t, err)

	restored, err := repo.RestoreBlog(ctx, blog.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	got, err := repo.GetBlog(ctx, blog.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "restorable", got.Title)
}

func TestHardDeleteBlog(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("gone")
	require.NoError(t, repo.CreateBlog(ctx, blog))
	require.NoError(t, repo.HardDeleteBlog(ctx, blog.ID))

	_, err := repo.GetBlog(ctx, blog.ID, true)
	assert.ErrorIs(t, err, simpleblog.ErrBlogNotFound)

	assert.ErrorIs(t, repo.HardDeleteBlog(ctx, blog.ID), simpleblog.ErrBlogNotFound)
}

func TestUpdateBlogPreservesCounters(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("counted")
	require.NoError(t, repo.CreateBlog(ctx, blog))

	for i := 0; i < 3; i++ {
		_, err := repo.IncrementViews(ctx, blog.ID)
		require.NoError(t, err)
	}

	blog.Title = "still counted"
	blog.Views = 0 // callers cannot reset counters through UpdateBlog
	require.NoError(t, repo.UpdateBlog(ctx, blog))

	got, err := repo.GetBlog(ctx, blog.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "still counted", got.Title)
	assert.Equal(t, int64(3), got.Views)
}

func TestIncrementViews(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("viewed")
	require.NoError(t, repo.CreateBlog(ctx, blog))

	views, err := repo.IncrementViews(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	views, err = repo.IncrementViews(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), views)

	_, err = repo.IncrementViews(ctx, 999)
	assert.ErrorIs(t, err, simpleblog.ErrBlogNotFound)
}

func TestIncrementViewsConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := New()

	blog := newBlog("hot")
	require.NoError(t, repo.CreateBlog(ctx, blog))

	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := repo.IncrementViews(ctx, blog.ID)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetBlog(ctx, blog.ID, false)
	require.NoError(t, err)
	// No increment is ever lost.
	assert.Equal(t, int64(workers*perWorker), got.Views)
}

func TestListBlogsTagSubset(t *testing.T) {
	ctx := context.Background()
	repo := New()

	require.NoError(t, repo.CreateBlog(ctx, newBlog("a", "go", "storage")))
	require.NoError(t, repo.CreateBlog(ctx, newBlog("b", "go")))
	require.NoError(t, repo.CreateBlog(ctx, newBlog("c", "rust")))

	blogs, total, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{
		Tags: []string{"go"}, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, blogs, 2)

	// Subset match: both tags required.
	blogs, total, err = repo.ListBlogs(ctx, simpleblog.BlogFilter{
		Tags: []string{"go", "storage"}, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, blogs, 1)
	assert.Equal(t, "a", blogs[0].Title)
}

func TestListBlogsTitleQuery(t *testing.T) {
	ctx := context.Background()
	repo := New()

	require.NoError(t, repo.CreateBlog(ctx, newBlog("Intro to Go")))
	require.NoError(t, repo.CreateBlog(ctx, newBlog("Advanced Rust")))

	blogs, total, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{
		Query: "go", Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, blogs, 1)
	assert.Equal(t, "Intro to Go", blogs[0].Title)
}

func TestListBlogsExcludesSoftDeleted(t *testing.T) {
	ctx := context.Background()
	repo := New()

	visible := newBlog("visible")
	hidden := newBlog("hidden")
	require.NoError(t, repo.CreateBlog(ctx, visible))
	require.NoError(t, repo.CreateBlog(ctx, hidden))
	_, err := repo.SoftDeleteBlog(ctx, hidden.ID)
	require.NoError(t, err)

	blogs, total, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, blogs, 1)
	assert.Equal(t, "visible", blogs[0].Title)

	_, total, err = repo.ListBlogs(ctx, simpleblog.BlogFilter{
		Page: 1, PageSize: 10, IncludeDeleted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestListBlogsSortByViews(t *testing.T) {
	ctx := context.Background()
	repo := New()

	cold := newBlog("cold")
	hot := newBlog("hot")
	require.NoError(t, repo.CreateBlog(ctx, cold))
	require.NoError(t, repo.CreateBlog(ctx, hot))

	for i := 0; i < 5; i++ {
		_, err := repo.IncrementViews(ctx, hot.ID)
		require.NoError(t, err)
	}

	blogs, _, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{
		SortBy: simpleblog.SortByViews, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, blogs, 2)
	assert.Equal(t, "hot", blogs[0].Title)
	assert.Equal(t, "cold", blogs[1].Title)
}

func TestListBlogsPagination(t *testing.T) {
	ctx := context.Background()
	repo := New()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		blog := newBlog(fmt.Sprintf("post %02d", i))
		blog.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.CreateBlog(ctx, blog))
	}

	page1, total, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page1, 10)
	// Newest first.
	assert.Equal(t, "post 24", page1[0].Title)

	page3, total, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, page3, 5)

	empty, total, err := repo.ListBlogs(ctx, simpleblog.BlogFilter{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Empty(t, empty)
}

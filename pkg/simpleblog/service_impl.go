package simpleblog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog/content"
	"github.com/tendant/simple-blog/pkg/simpleblog/objectkey"
)

const (
	// DefaultPresignTTL is the lifetime of presigned cover URLs.
	DefaultPresignTTL = time.Hour

	// viewIncrementTimeout bounds the asynchronous view-count write.
	viewIncrementTimeout = 5 * time.Second

	blogCacheTTL = 5 * time.Minute
	listCacheTTL = time.Minute

	cacheKeyPrefix     = "blog:"
	listCacheKeyPrefix = "blogs:"
)

// service implements the Service interface.
type service struct {
	repository Repository
	blobStore  BlobStore
	signer     URLSigner
	cache      Cache
	eventSink  EventSink
	logger     *slog.Logger
	presignTTL time.Duration
	now        func() time.Time
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRepository sets the metadata repository for the service.
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend.
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithURLSigner sets the presigned URL generator.
func WithURLSigner(signer URLSigner) Option {
	return func(s *service) {
		s.signer = signer
	}
}

// WithCache sets the result cache. Without one, cache operations are no-ops.
func WithCache(cache Cache) Option {
	return func(s *service) {
		s.cache = cache
	}
}

// WithEventSink sets the event sink for the service.
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithPresignTTL overrides the default cover URL lifetime.
func WithPresignTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.presignTTL = ttl
	}
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		cache:      NewNoopCache(),
		eventSink:  NewNoopEventSink(),
		presignTTL: DefaultPresignTTL,
		now:        time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Create

func (s *service) CreateBlog(ctx context.Context, req CreateBlogRequest) (*Blog, error) {
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(req.Content) == 0 {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(req.Cover) > 0 && !objectkey.SupportedCoverType(req.CoverContentType) {
		return nil, &ValidationError{Field: "cover", Reason: fmt.Sprintf("unsupported content type %q", req.CoverContentType)}
	}
	if req.ReadTime != nil && *req.ReadTime < 1 {
		return nil, &ValidationError{Field: "readTime", Reason: "must be a positive integer"}
	}

	safeHTML := content.Sanitize(string(req.Content))
	readTime := req.ReadTime
	if readTime == nil {
		minutes := computedReadTime(safeHTML)
		readTime = &minutes
	}

	now := s.now().UTC()
	blog := &Blog{
		Title:     req.Title,
		Tags:      normalizeTags(req.Tags),
		ReadTime:  readTime,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Step 1: provisional row, blob keys not yet committed.
	if err := s.repository.CreateBlog(ctx, blog); err != nil {
		return nil, &BlogError{BlogID: blog.ID, Op: "create", Err: err}
	}

	// Step 2: content blob under the deterministic key.
	contentKey := objectkey.ContentKey(blog.ID)
	if err := s.blobStore.UploadWithParams(ctx, strings.NewReader(safeHTML), UploadParams{
		ObjectKey:   contentKey,
		ContentType: "text/html; charset=utf-8",
	}); err != nil {
		s.compensateCreate(blog.ID)
		return nil, s.storageError("upload", contentKey, err)
	}

	// Step 3: optional cover blob.
	var coverKey string
	if len(req.Cover) > 0 {
		key, err := objectkey.CoverKey(blog.ID, req.CoverContentType)
		if err != nil {
			s.compensateCreate(blog.ID)
			return nil, &ValidationError{Field: "cover", Reason: err.Error()}
		}
		if err := s.blobStore.UploadWithParams(ctx, bytes.NewReader(req.Cover), UploadParams{
			ObjectKey:   key,
			ContentType: req.CoverContentType,
		}); err != nil {
			s.compensateCreate(blog.ID)
			return nil, s.storageError("upload", key, err)
		}
		coverKey = key
	}

	// Step 4: commit the keys. A row is only visible with a content blob
	// behind it, so a failed commit is compensated like a failed upload.
	blog.ContentKey = contentKey
	blog.CoverKey = coverKey
	blog.UpdatedAt = s.now().UTC()
	if err := s.repository.UpdateBlog(ctx, blog); err != nil {
		s.compensateCreate(blog.ID)
		return nil, &BlogError{BlogID: blog.ID, Op: "create", Err: err}
	}

	s.invalidateLists(ctx)

	if err := s.eventSink.BlogCreated(ctx, blog); err != nil {
		s.logger.Error("blog created event failed", "blog_id", blog.ID, "error", err)
	}

	return blog, nil
}

// compensateCreate removes the provisional row (and any blobs already
// uploaded under its prefix) after a failed create, so no visible row ever
// points to a missing blob. Best effort: the original error is what callers
// see.
func (s *service) compensateCreate(blogID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), viewIncrementTimeout)
	defer cancel()

	if err := s.repository.HardDeleteBlog(ctx, blogID); err != nil {
		s.logger.Error("create compensation failed to delete row", "blog_id", blogID, "error", err)
	}
	if _, err := s.blobStore.DeleteByPrefix(ctx, objectkey.Prefix(blogID)); err != nil {
		s.logger.Error("create compensation failed to clean blobs", "blog_id", blogID, "error", err)
	}
}

// Reads

func (s *service) GetBlog(ctx context.Context, id int64) (*Blog, error) {
	blog, err := s.getCached(ctx, id)
	if err != nil {
		return nil, err
	}

	s.incrementViewsAsync(id)

	// The accepted read is reflected in the returned copy; the stored counter
	// catches up asynchronously.
	blog.Views++

	if blog.CoverKey != "" && s.signer != nil {
		url, err := s.signer.SignGetURL(ctx, blog.CoverKey, s.presignTTL)
		if err != nil {
			return nil, s.storageError("sign", blog.CoverKey, err)
		}
		blog.CoverURL = url
	}

	return blog, nil
}

func (s *service) GetBlogContent(ctx context.Context, id int64) (*Blog, []byte, error) {
	blog, err := s.GetBlog(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.blobStore.Download(ctx, blog.ContentKey)
	if err != nil {
		return nil, nil, s.storageError("download", blog.ContentKey, err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, s.storageError("download", blog.ContentKey, err)
	}

	return blog, body, nil
}

func (s *service) getCached(ctx context.Context, id int64) (*Blog, error) {
	key := blogCacheKey(id)
	if data, ok := s.cache.Get(ctx, key); ok {
		var blog Blog
		if err := json.Unmarshal(data, &blog); err == nil {
			return &blog, nil
		}
		s.cache.Delete(ctx, key)
	}

	blog, err := s.repository.GetBlog(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(blog); err == nil {
		s.cache.Set(ctx, key, data, blogCacheTTL)
	}
	return blog, nil
}

// incrementViewsAsync fires the view-count update without blocking the
// response. Failures are logged and discarded; they never surface to the
// caller.
func (s *service) incrementViewsAsync(id int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), viewIncrementTimeout)
		defer cancel()

		views, err := s.repository.IncrementViews(ctx, id)
		if err != nil {
			s.logger.Error("view count increment failed", "blog_id", id, "error", err)
			return
		}
		s.cache.Delete(ctx, blogCacheKey(id))
		if err := s.eventSink.BlogViewed(ctx, id, views); err != nil {
			s.logger.Error("blog viewed event failed", "blog_id", id, "error", err)
		}
	}()
}

// Lists

func (s *service) ListBlogs(ctx context.Context, req ListBlogsRequest) ([]*Blog, int, error) {
	filter := BlogFilter{
		Tags:     normalizeTags(req.Tags),
		Query:    req.Query,
		SortBy:   req.SortBy,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.SortBy == "" {
		filter.SortBy = SortByCreatedAt
	}
	if filter.Page < 1 {
		return nil, 0, &ValidationError{Field: "page", Reason: "must be >= 1"}
	}
	if filter.PageSize < MinPageSize || filter.PageSize > MaxPageSize {
		return nil, 0, &ValidationError{Field: "pageSize", Reason: fmt.Sprintf("must be between %d and %d", MinPageSize, MaxPageSize)}
	}

	return s.listCached(ctx, filter)
}

func (s *service) SearchBlogs(ctx context.Context, query string, page, pageSize int) ([]*Blog, int, error) {
	return s.ListBlogs(ctx, ListBlogsRequest{Query: query, Page: page, PageSize: pageSize})
}

func (s *service) LatestBlogs(ctx context.Context, limit int) ([]*Blog, error) {
	blogs, _, err := s.ListBlogs(ctx, ListBlogsRequest{SortBy: SortByCreatedAt, Page: 1, PageSize: limit})
	return blogs, err
}

func (s *service) PopularBlogs(ctx context.Context, limit int) ([]*Blog, error) {
	blogs, _, err := s.ListBlogs(ctx, ListBlogsRequest{SortBy: SortByViews, Page: 1, PageSize: limit})
	return blogs, err
}

type cachedList struct {
	Blogs []*Blog `json:"blogs"`
	Total int     `json:"total"`
}

func (s *service) listCached(ctx context.Context, filter BlogFilter) ([]*Blog, int, error) {
	key := listCacheKey(filter)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached cachedList
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached.Blogs, cached.Total, nil
		}
		s.cache.Delete(ctx, key)
	}

	blogs, total, err := s.repository.ListBlogs(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if data, err := json.Marshal(cachedList{Blogs: blogs, Total: total}); err == nil {
		s.cache.Set(ctx, key, data, listCacheTTL)
	}
	return blogs, total, nil
}

// Update

func (s *service) UpdateBlog(ctx context.Context, req UpdateBlogRequest) (*Blog, error) {
	if req.ReadTime != nil && *req.ReadTime < 1 {
		return nil, &ValidationError{Field: "readTime", Reason: "must be a positive integer"}
	}

	blog, err := s.repository.GetBlog(ctx, req.ID, false)
	if err != nil {
		return nil, err
	}

	if len(req.Content) > 0 {
		safeHTML := content.Sanitize(string(req.Content))
		if err := s.blobStore.UploadWithParams(ctx, strings.NewReader(safeHTML), UploadParams{
			ObjectKey:   blog.ContentKey,
			ContentType: "text/html; charset=utf-8",
		}); err != nil {
			return nil, s.storageError("upload", blog.ContentKey, err)
		}
		if req.ReadTime == nil {
			minutes := computedReadTime(safeHTML)
			req.ReadTime = &minutes
		}
	}

	if len(req.Cover) > 0 {
		newKey, err := objectkey.CoverKey(blog.ID, req.CoverContentType)
		if err != nil {
			return nil, &ValidationError{Field: "cover", Reason: err.Error()}
		}
		if err := s.blobStore.UploadWithParams(ctx, bytes.NewReader(req.Cover), UploadParams{
			ObjectKey:   newKey,
			ContentType: req.CoverContentType,
		}); err != nil {
			return nil, s.storageError("upload", newKey, err)
		}
		// A replaced cover may change extension; drop the stale object.
		if blog.CoverKey != "" && blog.CoverKey != newKey {
			if err := s.blobStore.Delete(ctx, blog.CoverKey); err != nil {
				s.logger.Error("stale cover cleanup failed", "blog_id", blog.ID, "key", blog.CoverKey, "error", err)
			}
		}
		blog.CoverKey = newKey
	}

	if req.Title != nil {
		blog.Title = *req.Title
	}
	if req.Tags != nil {
		blog.Tags = normalizeTags(req.Tags)
	}
	if req.ReadTime != nil {
		blog.ReadTime = req.ReadTime
	}
	blog.UpdatedAt = s.now().UTC()

	if err := s.repository.UpdateBlog(ctx, blog); err != nil {
		return nil, &BlogError{BlogID: blog.ID, Op: "update", Err: err}
	}

	s.invalidateBlog(ctx, blog.ID)

	if err := s.eventSink.BlogUpdated(ctx, blog); err != nil {
		s.logger.Error("blog updated event failed", "blog_id", blog.ID, "error", err)
	}

	return blog, nil
}

// Deletes

func (s *service) SoftDeleteBlog(ctx context.Context, id int64) error {
	if _, err := s.repository.SoftDeleteBlog(ctx, id); err != nil {
		return err
	}

	s.invalidateBlog(ctx, id)

	if err := s.eventSink.BlogDeleted(ctx, id); err != nil {
		s.logger.Error("blog deleted event failed", "blog_id", id, "error", err)
	}
	return nil
}

func (s *service) RestoreBlog(ctx context.Context, id int64) (*Blog, error) {
	blog, err := s.repository.RestoreBlog(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateBlog(ctx, id)
	return blog, nil
}

func (s *service) HardDeleteBlog(ctx context.Context, id int64) error {
	if _, err := s.repository.GetBlog(ctx, id, true); err != nil {
		return err
	}

	// Blobs first: a failure here aborts before metadata is touched, leaving
	// a deletable row rather than orphaned blobs with no owning record.
	prefix := objectkey.Prefix(id)
	if _, err := s.blobStore.DeleteByPrefix(ctx, prefix); err != nil {
		return s.storageError("delete_by_prefix", prefix, err)
	}

	if err := s.repository.HardDeleteBlog(ctx, id); err != nil {
		return &BlogError{BlogID: id, Op: "hard_delete", Err: err}
	}

	s.invalidateBlog(ctx, id)

	if err := s.eventSink.BlogDeleted(ctx, id); err != nil {
		s.logger.Error("blog deleted event failed", "blog_id", id, "error", err)
	}
	return nil
}

// Helpers

func (s *service) storageError(op, key string, err error) error {
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Key: key, Op: op, Err: err}
}

func (s *service) invalidateBlog(ctx context.Context, id int64) {
	s.cache.Delete(ctx, blogCacheKey(id))
	s.invalidateLists(ctx)
}

func (s *service) invalidateLists(ctx context.Context) {
	s.cache.DeleteByPrefix(ctx, listCacheKeyPrefix)
}

func blogCacheKey(id int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, id)
}

func listCacheKey(filter BlogFilter) string {
	return fmt.Sprintf("%s%s:%s:%s:%d:%d",
		listCacheKeyPrefix, filter.SortBy, filter.Query, strings.Join(filter.Tags, ","), filter.Page, filter.PageSize)
}

// computedReadTime derives read time from sanitized HTML. Stored read times
// are always positive, so content that sanitizes to nothing still reads in
// one minute.
func computedReadTime(safeHTML string) int {
	minutes := content.ReadTime(content.PlainText(safeHTML))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

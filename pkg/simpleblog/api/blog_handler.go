package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/content"
	"github.com/tendant/simple-blog/pkg/simpleblog/ratelimit"
)

const (
	// maxUploadBytes caps each multipart file part.
	maxUploadBytes = 10 << 20

	// maxRequestBytes caps the whole multipart body (content + cover + fields).
	maxRequestBytes = 2*maxUploadBytes + 1<<20

	defaultPageSize  = 10
	defaultFeedLimit = 10
)

// BlogHandler handles HTTP requests for blogs.
type BlogHandler struct {
	service    simpleblog.Service
	logger     *slog.Logger
	production bool
}

// HandlerOption configures a BlogHandler.
type HandlerOption func(*BlogHandler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *BlogHandler) {
		h.logger = logger
	}
}

// WithProduction hides internal error detail from responses.
func WithProduction(production bool) HandlerOption {
	return func(h *BlogHandler) {
		h.production = production
	}
}

// NewBlogHandler creates a new blog handler.
func NewBlogHandler(service simpleblog.Service, opts ...HandlerOption) *BlogHandler {
	h := &BlogHandler{
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the blog routes with per-tier rate limits. Write and delete
// endpoints additionally sit behind the shared API key.
func (h *BlogHandler) Routes(apiKey string, limiter ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	// Public reads.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter, ratelimit.TierPublicRead, h.logger, h.production))

		r.Get("/", h.ListBlogs)
		r.Get("/search", h.SearchBlogs)
		r.Get("/feed/latest", h.LatestBlogs)
		r.Get("/feed/popular", h.PopularBlogs)
		r.Get("/{id}", h.GetBlog)
		r.Get("/{id}/content", h.GetBlogContent)
	})

	// Admin writes.
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(apiKey, h.logger, h.production))
		r.Use(RateLimit(limiter, ratelimit.TierAdminWrite, h.logger, h.production))

		r.Post("/", h.CreateBlog)
		r.Put("/{id}", h.UpdateBlog)
		r.Post("/{id}/restore", h.RestoreBlog)
	})

	// Admin deletes.
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(apiKey, h.logger, h.production))
		r.Use(RateLimit(limiter, ratelimit.TierAdminDelete, h.logger, h.production))

		r.Delete("/{id}", h.SoftDeleteBlog)
		r.Delete("/{id}/permanent", h.HardDeleteBlog)
	})

	return r
}

// CreateBlog handles POST /blogs with a multipart body: title, tags (JSON
// array string), optional readTime, a required content file, and an optional
// cover file.
func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseMultipart(w, r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	if len(form.content) == 0 {
		writeError(w, r, h.logger, h.production,
			&simpleblog.ValidationError{Field: "content", Reason: "file is required"})
		return
	}

	blog, err := h.service.CreateBlog(r.Context(), simpleblog.CreateBlogRequest{
		Title:            form.title,
		Tags:             form.tags,
		ReadTime:         form.readTime,
		Content:          form.content,
		Cover:            form.cover,
		CoverContentType: form.coverContentType,
	})
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeData(w, r, http.StatusCreated, blog)
}

// GetBlog handles GET /blogs/{id}.
func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, err := blogID(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	blog, err := h.service.GetBlog(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeData(w, r, http.StatusOK, blog)
}

// GetBlogContent handles GET /blogs/{id}/content. The body is the sanitized
// HTML itself, not an envelope.
func (h *BlogHandler) GetBlogContent(w http.ResponseWriter, r *http.Request) {
	id, err := blogID(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	_, body, err := h.service.GetBlogContent(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ListBlogs handles GET /blogs with tags, query, sort, page and limit
// parameters.
func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	req, err := listRequest(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	blogs, total, err := h.service.ListBlogs(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writePage(w, r, blogs, NewPagination(total, req.Page, req.PageSize))
}

// SearchBlogs handles GET /blogs/search?query=... ("q" is accepted as an
// alias).
func (h *BlogHandler) SearchBlogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	if query == "" {
		writeError(w, r, h.logger, h.production,
			&simpleblog.ValidationError{Field: "query", Reason: "must not be empty"})
		return
	}

	page, pageSize, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	blogs, total, err := h.service.SearchBlogs(r.Context(), query, page, pageSize)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writePage(w, r, blogs, NewPagination(total, page, pageSize))
}

// LatestBlogs handles GET /blogs/feed/latest.
func (h *BlogHandler) LatestBlogs(w http.ResponseWriter, r *http.Request) {
	limit, err := feedLimit(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	blogs, err := h.service.LatestBlogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeData(w, r, http.StatusOK, blogs)
}

// PopularBlogs handles GET /blogs/feed/popular.
func (h *BlogHandler) PopularBlogs(w http.ResponseWriter, r *http.Request) {
	limit, err := feedLimit(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	blogs, err := h.service.PopularBlogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeData(w, r, http.StatusOK, blogs)
}

// UpdateBlog handles PUT /blogs/{id}. All multipart fields are optional;
// omitted ones are left untouched.
func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := blogID(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	form, err := h.parseMultipart(w, r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	req := simpleblog.UpdateBlogRequest{
		ID:               id,
		ReadTime:         form.readTime,
		Content:          form.content,
		Cover:            form.cover,
		CoverContentType: form.coverContentType,
	}
	if form.hasTitle {
		req.Title = &form.title
	}
	if form.hasTags {
		req.Tags = form.tags
	}

	blog, err := h.service.UpdateBlog(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeData(w, r, http.StatusOK, blog)
}

// SoftDeleteBlog handles DELETE /blogs/{id}.
func (h *BlogHandler) SoftDeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := blogID(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	if err := h.service.SoftDeleteBlog(r.Context(), id); err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeMessage(w, r, http.StatusOK, "blog deleted")
}

// HardDeleteBlog handles DELETE /blogs/{id}/permanent.
func (h *BlogHandler) HardDeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := blogID(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	if err := h.service.HardDeleteBlog(r.Context(), id); err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeMessage(w, r, http.StatusOK, "blog permanently deleted")
}

// RestoreBlog handles POST /blogs/{id}/restore.
func (h *BlogHandler) RestoreBlog(w http.ResponseWriter, r *http.Request) {
	id, err := blogID(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	blog, err := h.service.RestoreBlog(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	writeData(w, r, http.StatusOK, blog)
}

// Health handles GET /health.
func (h *BlogHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// blogForm holds the decoded multipart fields shared by create and update.
type blogForm struct {
	title            string
	hasTitle         bool
	tags             []string
	hasTags          bool
	readTime         *int
	content          []byte
	cover            []byte
	coverContentType string
}

func (h *BlogHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*blogForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, &simpleblog.ValidationError{Field: "body", Reason: "invalid multipart form: " + err.Error()}
	}

	form := &blogForm{}

	if values, ok := r.MultipartForm.Value["title"]; ok && len(values) > 0 {
		form.title = strings.TrimSpace(values[0])
		form.hasTitle = true
	}

	// Tags arrive as a JSON array string; anything malformed means no tags.
	if values, ok := r.MultipartForm.Value["tags"]; ok && len(values) > 0 {
		form.tags = content.ParseTags(values[0])
		form.hasTags = true
	}

	if values, ok := r.MultipartForm.Value["readTime"]; ok && len(values) > 0 && values[0] != "" {
		minutes, err := strconv.Atoi(values[0])
		if err != nil || minutes < 1 {
			return nil, &simpleblog.ValidationError{Field: "readTime", Reason: "must be a positive integer"}
		}
		form.readTime = &minutes
	}

	contentBytes, _, err := formFile(r, "content")
	if err != nil {
		return nil, err
	}
	form.content = contentBytes

	coverBytes, coverType, err := formFile(r, "cover")
	if err != nil {
		return nil, err
	}
	form.cover = coverBytes
	form.coverContentType = coverType

	return form, nil
}

// formFile reads one optional multipart file, returning its bytes and
// declared content type. A missing part is not an error.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", &simpleblog.ValidationError{Field: field, Reason: err.Error()}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "", &simpleblog.ValidationError{Field: field, Reason: "failed to read file"}
	}
	if len(data) > maxUploadBytes {
		return nil, "", &simpleblog.ValidationError{Field: field, Reason: "file exceeds 10 MiB limit"}
	}

	return data, header.Header.Get("Content-Type"), nil
}

func blogID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &simpleblog.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

func listRequest(r *http.Request) (simpleblog.ListBlogsRequest, error) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		return simpleblog.ListBlogsRequest{}, err
	}

	query := r.URL.Query()

	req := simpleblog.ListBlogsRequest{
		Query:    query.Get("query"),
		Page:     page,
		PageSize: pageSize,
	}

	if raw := query.Get("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				req.Tags = append(req.Tags, tag)
			}
		}
	}

	switch sort := query.Get("sort"); sort {
	case "", simpleblog.SortByCreatedAt:
		req.SortBy = simpleblog.SortByCreatedAt
	case simpleblog.SortByViews:
		req.SortBy = simpleblog.SortByViews
	default:
		return simpleblog.ListBlogsRequest{}, &simpleblog.ValidationError{Field: "sort", Reason: "must be 'created_at' or 'views'"}
	}

	return req, nil
}

func pageParams(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, 0, &simpleblog.ValidationError{Field: "page", Reason: "must be a positive integer"}
		}
		page = parsed
	}

	pageSize := defaultPageSize
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < simpleblog.MinPageSize || parsed > simpleblog.MaxPageSize {
			return 0, 0, &simpleblog.ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
		}
		pageSize = parsed
	}

	return page, pageSize, nil
}

func feedLimit(r *http.Request) (int, error) {
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < simpleblog.MinPageSize || parsed > simpleblog.MaxPageSize {
			return 0, &simpleblog.ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
		}
		limit = parsed
	}
	return limit, nil
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
	"github.com/tendant/simple-blog/pkg/simpleblog/ratelimit"
	"github.com/tendant/simple-blog/pkg/simpleblog/repo/memory"
	memorystorage "github.com/tendant/simple-blog/pkg/simpleblog/storage/memory"
)

const testAPIKey = "test-api-key"

// envelope mirrors Envelope with raw data for per-test decoding.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Errors     []string        `json:"errors"`
	Pagination *Pagination     `json:"pagination"`
}

func newTestServer(t *testing.T, opts ...ratelimit.FixedWindowOption) (*httptest.Server, simpleblog.Service) {
	t.Helper()

	signer := presigned.New(
		presigned.WithSecretKey([]byte("test-secret")),
		presigned.WithBaseURL("http://localhost:8080"),
	)
	svc, err := simpleblog.New(
		simpleblog.WithRepository(memory.New()),
		simpleblog.WithBlobStore(memorystorage.New()),
		simpleblog.WithURLSigner(signer),
	)
	require.NoError(t, err)

	handler := NewBlogHandler(svc)
	limiter := ratelimit.NewFixedWindow(opts...)

	r := chi.NewRouter()
	r.Mount("/blogs", handler.Routes(testAPIKey, limiter))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, svc
}

type filePart struct {
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]filePart) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for name, part := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, name, part.filename))
		header.Set("Content-Type", part.contentType)

		fw, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = fw.Write(part.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func createBlogRequest(t *testing.T, serverURL, title string) *http.Request {
	t.Helper()

	body, contentType := multipartBody(t,
		map[string]string{"title": title, "tags": `["go","testing"]`},
		map[string]filePart{
			"content": {filename: "content.html", contentType: "text/html", data: []byte("<p>hello</p>")},
		})

	req, err := http.NewRequest(http.MethodPost, serverURL+"/blogs", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestCreateBlogEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, env := doRequest(t, createBlogRequest(t, server.URL, "First Post"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)

	var blog simpleblog.Blog
	require.NoError(t, json.Unmarshal(env.Data, &blog))
	assert.Equal(t, int64(1), blog.ID)
	assert.Equal(t, "First Post", blog.Title)
	assert.Equal(t, []string{"go", "testing"}, blog.Tags)
	assert.Equal(t, "blogs/1/content.html", blog.ContentKey)
}

func TestCreateBlogWithCoverEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"title": "Covered"},
		map[string]filePart{
			"content": {filename: "content.html", contentType: "text/html", data: []byte("<p>x</p>")},
			"cover":   {filename: "cover.png", contentType: "image/png", data: []byte{0x89, 0x50}},
		})

	req, err := http.NewRequest(http.MethodPost, server.URL+"/blogs", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)

	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var blog simpleblog.Blog
	require.NoError(t, json.Unmarshal(env.Data, &blog))
	assert.Equal(t, "blogs/1/cover.png", blog.CoverKey)
}

func TestCreateBlogRequiresCredential(t *testing.T) {
	server, _ := newTestServer(t)

	req := createBlogRequest(t, server.URL, "Gated")
	req.Header.Del("X-API-Key")

	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "missing credential", env.Errors[0])
}

func TestCreateBlogRejectsWrongCredential(t *testing.T) {
	server, _ := newTestServer(t)

	req := createBlogRequest(t, server.URL, "Gated")
	req.Header.Set("X-API-Key", "wrong-key")

	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid credential", env.Errors[0])
}

func TestBearerTokenAccepted(t *testing.T) {
	server, _ := newTestServer(t)

	req := createBlogRequest(t, server.URL, "Bearer Post")
	req.Header.Del("X-API-Key")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	resp, _ := doRequest(t, req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateBlogRequiresContentFile(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"title": "Empty"}, nil)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/blogs", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)

	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestCreateBlogRejectsZeroReadTime(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"title": "Timed", "readTime": "0"},
		map[string]filePart{
			"content": {filename: "content.html", contentType: "text/html", data: []byte("<p>x</p>")},
		})
	req, err := http.NewRequest(http.MethodPost, server.URL+"/blogs", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)

	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid readTime: must be a positive integer", env.Errors[0])
}

func TestCreateBlogDuplicateTitleConflict(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Same"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := doRequest(t, createBlogRequest(t, server.URL, "Same"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestGetBlogEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Readable"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/1", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var blog simpleblog.Blog
	require.NoError(t, json.Unmarshal(env.Data, &blog))
	assert.Equal(t, "Readable", blog.Title)
	// The accepted read is already counted in the response.
	assert.Equal(t, int64(1), blog.Views)
}

func TestGetBlogInvalidID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/abc", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestGetBlogNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/42", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "blog not found", env.Errors[0])
}

func TestGetBlogContentEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Readable"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := mustRequest(t, http.MethodGet, server.URL+"/blogs/1/content", nil)
	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()

	assert.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", httpResp.Header.Get("Content-Type"))

	body, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", string(body))
}

func TestListBlogsPaginationEnvelope(t *testing.T) {
	server, _ := newTestServer(t)

	for i := 0; i < 12; i++ {
		resp, _ := doRequest(t, createBlogRequest(t, server.URL, fmt.Sprintf("Post %d", i)))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs?page=1&limit=10", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 12, env.Pagination.Total)
	assert.Equal(t, 1, env.Pagination.Page)
	assert.Equal(t, 10, env.Pagination.Limit)
	assert.Equal(t, 2, env.Pagination.TotalPages)
	assert.True(t, env.Pagination.HasMore)

	var blogs []*simpleblog.Blog
	require.NoError(t, json.Unmarshal(env.Data, &blogs))
	assert.Len(t, blogs, 10)

	resp, env = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs?page=2&limit=10", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, env.Pagination.HasMore)
}

func TestListBlogsInvalidParams(t *testing.T) {
	server, _ := newTestServer(t)

	for _, query := range []string{"?page=0", "?limit=101", "?sort=likes"} {
		resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs"+query, nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.False(t, env.Success, query)
	}
}

func TestSearchBlogsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Go Concurrency"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doRequest(t, createBlogRequest(t, server.URL, "Rust Ownership"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/search?query=rust", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var blogs []*simpleblog.Blog
	require.NoError(t, json.Unmarshal(env.Data, &blogs))
	require.Len(t, blogs, 1)
	assert.Equal(t, "Rust Ownership", blogs[0].Title)

	// "q" still works as an alias.
	resp, env = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/search?q=rust", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &blogs))
	require.Len(t, blogs, 1)
	assert.Equal(t, "Rust Ownership", blogs[0].Title)

	// Empty query is rejected.
	resp, _ = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/search", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Feed Post"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, path := range []string{"/blogs/feed/latest", "/blogs/feed/popular"} {
		resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+path, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)

		var blogs []*simpleblog.Blog
		require.NoError(t, json.Unmarshal(env.Data, &blogs))
		assert.Len(t, blogs, 1, path)
	}
}

func TestUpdateBlogEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Before"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, contentType := multipartBody(t, map[string]string{"title": "After"}, nil)
	req := mustRequest(t, http.MethodPut, server.URL+"/blogs/1", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)

	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var blog simpleblog.Blog
	require.NoError(t, json.Unmarshal(env.Data, &blog))
	assert.Equal(t, "After", blog.Title)
	// Untouched fields survive the partial update.
	assert.Equal(t, []string{"go", "testing"}, blog.Tags)
}

func TestSoftDeleteAndRestoreEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Hidden"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := mustRequest(t, http.MethodDelete, server.URL+"/blogs/1", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "blog deleted", env.Message)

	resp, _ = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/1", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req = mustRequest(t, http.MethodPost, server.URL+"/blogs/1/restore", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, _ = doRequest(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs/1", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHardDeleteEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doRequest(t, createBlogRequest(t, server.URL, "Erased"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := mustRequest(t, http.MethodDelete, server.URL+"/blogs/1/permanent", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, env := doRequest(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "blog permanently deleted", env.Message)

	// Gone for good: restore cannot bring it back.
	req = mustRequest(t, http.MethodPost, server.URL+"/blogs/1/restore", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, _ = doRequest(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	server, _ := newTestServer(t, ratelimit.WithPolicies(map[ratelimit.Tier]ratelimit.Policy{
		ratelimit.TierPublicRead:  {Window: time.Minute, Max: 2},
		ratelimit.TierAdminWrite:  {Window: time.Minute, Max: 50},
		ratelimit.TierAdminDelete: {Window: time.Minute, Max: 20},
	}))

	resp, _ := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	resp, _ = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, env := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs", nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "rate limit exceeded", env.Errors[0])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRateLimitTiersAreIndependent(t *testing.T) {
	server, _ := newTestServer(t, ratelimit.WithPolicies(map[ratelimit.Tier]ratelimit.Policy{
		ratelimit.TierPublicRead:  {Window: time.Minute, Max: 1},
		ratelimit.TierAdminWrite:  {Window: time.Minute, Max: 50},
		ratelimit.TierAdminDelete: {Window: time.Minute, Max: 20},
	}))

	// Exhaust the public tier.
	resp, _ := doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, mustRequest(t, http.MethodGet, server.URL+"/blogs", nil))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Admin writes are counted separately.
	resp, _ = doRequest(t, createBlogRequest(t, server.URL, "Still Writable"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimitIdentityByClientAddress(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(ratelimit.WithPolicies(map[ratelimit.Tier]ratelimit.Policy{
		ratelimit.TierPublicRead: {Window: time.Minute, Max: 1},
	}))
	handler := RateLimit(limiter, ratelimit.TierPublicRead, slog.Default(), false)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/blogs", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// RealIP leaves a bare address in RemoteAddr; distinct IPv6 clients must
	// not collapse into one identity.
	assert.Equal(t, http.StatusOK, send("2001:db8::1"))
	assert.Equal(t, http.StatusTooManyRequests, send("2001:db8::1"))
	assert.Equal(t, http.StatusOK, send("2001:db8::2"))

	// host:port forms count against the host alone.
	assert.Equal(t, http.StatusOK, send("192.0.2.1:1111"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:2222"))
	assert.Equal(t, http.StatusOK, send("[2001:db8::3]:443"))
	assert.Equal(t, http.StatusTooManyRequests, send("[2001:db8::3]:8443"))
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A supplied ID is echoed back.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", rec.Header().Get("X-Request-ID"))

	// Absent one is generated.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func mustRequest(t *testing.T, method, url string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	return req
}

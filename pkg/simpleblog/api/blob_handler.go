package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
)

// BlobHandler serves signed blob reads on backends without native
// presigning. The S3 backend hands out URLs pointing at S3 itself, so this
// handler is only mounted for memory and fs storage.
type BlobHandler struct {
	store      simpleblog.BlobStore
	signer     *presigned.Signer
	logger     *slog.Logger
	production bool
}

// NewBlobHandler creates a new blob handler.
func NewBlobHandler(store simpleblog.BlobStore, signer *presigned.Signer, opts ...HandlerOption) *BlobHandler {
	base := &BlogHandler{logger: slog.Default()}
	for _, opt := range opts {
		opt(base)
	}
	return &BlobHandler{
		store:      store,
		signer:     signer,
		logger:     base.logger,
		production: base.production,
	}
}

// Routes returns the signed blob read route.
func (h *BlobHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.GetBlob)
	return r
}

// GetBlob validates the signature and streams the object. An invalid or
// expired signature is a 401; a signed key with nothing behind it is a 404.
func (h *BlobHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	objectKey, err := h.signer.ValidateRequest(r)
	if err != nil {
		writeError(w, r, h.logger, h.production, simpleblog.ErrInvalidCredential)
		return
	}

	meta, err := h.store.GetObjectMeta(r.Context(), objectKey)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}

	reader, err := h.store.Download(r.Context(), objectKey)
	if err != nil {
		writeError(w, r, h.logger, h.production, err)
		return
	}
	defer reader.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("blob stream failed", "key", objectKey, "error", err)
	}
}

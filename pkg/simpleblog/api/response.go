// Package api exposes the blog service over HTTP using chi.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Envelope is the uniform response body for all JSON endpoints.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// NewPagination computes the derived page fields from a total match count.
func NewPagination(total, page, limit int) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Success: true, Message: message})
}

func writePage(w http.ResponseWriter, r *http.Request, data interface{}, pagination *Pagination) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Envelope{Success: true, Data: data, Pagination: pagination})
}

// writeError maps the service error taxonomy onto HTTP statuses. Internal
// detail is only exposed outside production.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, production bool, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var validationErr *simpleblog.ValidationError
	var rateErr *simpleblog.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Error()

	case errors.Is(err, simpleblog.ErrMissingCredential),
		errors.Is(err, simpleblog.ErrInvalidCredential):
		status = http.StatusUnauthorized
		message = err.Error()

	case errors.Is(err, simpleblog.ErrBlogNotFound),
		errors.Is(err, simpleblog.ErrBlobNotFound):
		status = http.StatusNotFound
		message = "blog not found"

	case errors.Is(err, simpleblog.ErrDuplicateTitle):
		status = http.StatusConflict
		message = err.Error()

	case errors.As(err, &rateErr):
		status = http.StatusTooManyRequests
		message = "rate limit exceeded"
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateErr.RetryAfter.Seconds())))

	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if !production {
			message = err.Error()
		}
	}

	render.Status(r, status)
	render.JSON(w, r, Envelope{Success: false, Errors: []string{message}})
}

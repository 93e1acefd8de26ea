package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/ratelimit"
)

// RequestID assigns a request ID when the client did not send one, and
// reflects it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}

// credential extracts the shared admin credential from a request. X-API-Key
// and Authorization: Bearer are interchangeable.
func credential(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RequireAPIKey gates admin endpoints behind a single shared credential.
// There is no identity and no expiry; a missing credential and a wrong one
// are distinct errors but the same 401 status.
func RequireAPIKey(apiKey string, logger *slog.Logger, production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := credential(r)
			if supplied == "" {
				writeError(w, r, logger, production, simpleblog.ErrMissingCredential)
				return
			}
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) != 1 {
				writeError(w, r, logger, production, simpleblog.ErrInvalidCredential)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit enforces one tier's quota. Identity is the client IP for public
// tiers; admin tiers count against the supplied credential when present, so
// the quota follows the key rather than the address.
func RateLimit(limiter ratelimit.Limiter, tier ratelimit.Tier, logger *slog.Logger, production bool) func(http.Handler) http.Handler {
	adminTier := tier == ratelimit.TierAdminWrite || tier == ratelimit.TierAdminDelete

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := clientIP(r)
			if adminTier {
				if cred := credential(r); cred != "" {
					identity = cred
				}
			}

			result := limiter.Allow(tier, identity)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

			if !result.Allowed {
				writeError(w, r, logger, production, &simpleblog.RateLimitError{
					Tier:       string(tier),
					Limit:      result.Limit,
					RetryAfter: result.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the address set by chi's RealIP middleware, without the
// port. RealIP may leave a bare IP (no port) in RemoteAddr, so a split
// failure means the address is already portless.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

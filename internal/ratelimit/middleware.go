package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// KeyFunc derives the bucket a request is counted against.
type KeyFunc func(*http.Request) string

// ByIP buckets requests by client address.
func ByIP(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

// ByUserOrIP buckets authenticated requests by user and anonymous ones by address.
func ByUserOrIP(r *http.Request) string {
	if id, ok := common.UserID(r.Context()); ok && id != "" {
		return "user:" + id
	}
	return ByIP(r)
}

// Handler enforces a rate limit before delegating to the next handler.
type Handler struct {
	Scope   string
	Limiter *limiter.Limiter
	Key     KeyFunc
	OnError func(error)
}

// New builds a handler for scope using a formatted rate such as "120-M".
func New(store limiter.Store, scope, rate string, key KeyFunc) (Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return Handler{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	return Handler{Scope: scope, Limiter: limiter.New(store, parsed), Key: key}, nil
}

// Middleware implements the http.Handler middleware interface. Store errors
// let the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		lctx, err := h.Limiter.Get(r.Context(), h.Scope+":"+h.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := time.Until(time.Unix(lctx.Reset, 0)).Seconds()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(int(retryAfter+0.5)))
			obs.Inc(obs.RateLimitedTotal, h.Scope)
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

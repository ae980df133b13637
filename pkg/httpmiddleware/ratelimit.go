package httpmiddleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	// Rate is a limiter formatted rate such as "100-M" (100 per minute).
	Rate string
	// Store holds the counters. A process-local store is used when nil.
	Store limiter.Store
	// TrustForwardHeader keys clients by X-Forwarded-For / X-Real-IP.
	TrustForwardHeader bool
}

// RateLimit enforces cfg.Rate per client IP. Every counted response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers and
// rejected requests get a 429 JSON error. Store failures let the request
// through.
func RateLimit(cfg RateLimitConfig) (Middleware, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}
	store := cfg.Store
	if store == nil {
		store = memory.NewStore()
	}

	var opts []limiter.Option
	if cfg.TrustForwardHeader {
		opts = append(opts, limiter.WithTrustForwardHeader(true))
	}
	lim := limiter.New(store, rate, opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lc, err := lim.Get(r.Context(), lim.GetIPKey(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

			if lc.Reached {
				retry := time.Until(time.Unix(lc.Reset, 0))
				h.Set("Retry-After", strconv.Itoa(max(1, int(retry.Seconds()+0.5))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

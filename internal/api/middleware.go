package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shelfwise/shelfwise-server/internal/metrics"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
)

// requestLogger logs one line per request and counts it in
// metrics.HTTPRequestsTotal.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()

			level := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// rateLimitAuth refuses login and registration attempts beyond the limit of
// the caller's IP with 429.
func (s *Server) rateLimitAuth(ctx huma.Context, next func(huma.Context)) {
	limiter := s.opts.AuthRateLimiter
	if limiter == nil {
		next(ctx)
		return
	}

	r, _ := humachi.Unwrap(ctx)
	ip := ratelimit.ClientIP(r)
	if !limiter.Allow(ip) {
		metrics.RateLimitedTotal.Inc()
		s.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests, try again later")
		return
	}
	next(ctx)
}

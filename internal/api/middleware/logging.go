package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware using zerolog. Server errors
// log at error level and client errors at warn; SSE streams and scrapes of
// /metrics log at debug so they don't drown out regular traffic.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				route := routePath(r)
				logger.WithLevel(requestLevel(ww.Status(), route)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("route", route).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Str("user_id", r.Header.Get(UserHeader)).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func requestLevel(status int, route string) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case route == "/metrics" || route == "/rooms/{id}/events":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

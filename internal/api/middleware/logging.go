package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const logUserKey contextKey = "log_user"

// logUser is filled in by RequireAuth, which runs inside the route groups
// and therefore after Logger has already captured its request context.
type logUser struct {
	id int64
}

// Logger logs one line per request. Client errors log at warn, server
// errors at error. Authenticated endpoints include the user id.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			user := &logUser{}
			r = r.WithContext(context.WithValue(r.Context(), logUserKey, user))

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				evt := logger.Info()
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					evt = logger.Error()
				case ww.Status() >= http.StatusBadRequest:
					evt = logger.Warn()
				}
				if user.id != 0 {
					evt = evt.Int64("user", user.id)
				}
				evt.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("ip", RealIP(r)).
					Msg("request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

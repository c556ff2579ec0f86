package rest

import (
	"net/http"
	"time"

	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/muhammadchandra19/booksync/pkg/util"
)

const requestIDHeader = "X-Request-Id"

// RequestID puts the caller's X-Request-Id, or a new one, on the request context and
// echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := util.ContextWithRequestID(r.Context(), r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, util.GetRequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// AccessLog logs one debug line per request.
func AccessLog(log logger.Interface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.DebugContext(r.Context(), "HTTP request",
				logger.NewField("method", r.Method),
				logger.NewField("path", r.URL.Path),
				logger.NewField("status", rec.status),
				logger.NewField("duration", time.Since(start).String()),
			)
		})
	}
}

package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestContextKey ContextKey = "request"
)

// RequestContext is attached to every request that goes through
// TrackRequests.
type RequestContext struct {
	ID      string
	Started time.Time
}

func RequestContextFrom(r *http.Request) (RequestContext, bool) {
	return GetValueFromContext[RequestContext](r, requestContextKey)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// TrackRequests reuses the caller's request id when present, echoes it back
// and logs every finished request.
func TrackRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rc := RequestContext{ID: id, Started: time.Now()}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, AddValueToContext(r, requestContextKey, rc))

		logger.LogAttrs(r.Context(), slog.LevelDebug, "request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("elapsed", time.Since(rc.Started)),
		)
	})
}

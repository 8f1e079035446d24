package web

import (
	"net/http"
	"time"

	"plans-admin/internal/infra/logging"
	"plans-admin/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := r.Header.Get("X-Request-Id")
		if tid == "" {
			tid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", tid)
		ctx := logging.WithTraceID(r.Context(), tid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLog plugs zerolog into chi's request logger: one line per request,
// counted by route pattern. middleware.Recoverer reports panics through the
// same entry.
func RequestLog(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&logFormatter{log: logger})
}

type logFormatter struct {
	log *zerolog.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{log: logging.With(r.Context(), f.log), r: r}
}

type logEntry struct {
	log *zerolog.Logger
	r   *http.Request
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	route := ""
	if rctx := chi.RouteContext(e.r.Context()); rctx != nil {
		route = rctx.RoutePattern()
	}
	metrics.IncAdminHTTPRequest(route, status)

	ev := e.log.Info()
	if status >= http.StatusInternalServerError {
		ev = e.log.Error()
	}
	ev.Str("method", e.r.Method).
		Str("path", e.r.URL.Path).
		Str("route", route).
		Int("status", status).
		Int("bytes", bytes).
		Dur("duration", elapsed).
		Msg("http_request")
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.log.Error().Interface("panic", v).Bytes("stack", stack).Msg("panic recovered")
}

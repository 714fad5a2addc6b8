package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/infra/logging"
	"telegram-premium-delivery/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

// TraceID reuses X-Request-ID when the caller sent one and echoes it back.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if tid == "" || len(tid) > 64 {
				tid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// quietPaths are polled by health checks and scrapers and only logged at debug level.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// RequestLog writes one access line per request, keyed by the chi route
// pattern so admin paths with ids group together.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			l := logging.With(r.Context(), logger)
			var ev *zerolog.Event
			switch code := sw.code(); {
			case code >= 500:
				ev = l.Error()
			case code >= 400:
				ev = l.Warn()
			case quietPaths[r.URL.Path]:
				ev = l.Debug()
			default:
				ev = l.Info()
			}
			ev.Str("method", r.Method).
				Str("route", routePattern(r)).
				Int("status", sw.code()).
				Int64("bytes", sw.bytes).
				Dur("took", time.Since(start)).
				Msg("request served")
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// statusWriter remembers the status and body size written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) written() bool { return w.status != 0 }

// Recover turns a handler panic into a 500 carrying the request id, unless the
// handler already started its response. http.ErrAbortHandler is re-raised.
func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				route := routePattern(r)
				metrics.IncHTTPPanic(route)
				logging.With(r.Context(), logger).Error().
					Interface("panic", rec).
					Str("route", route).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if sw, ok := w.(*statusWriter); ok && sw.written() {
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error":      "internal error",
					"request_id": logging.TraceIDFrom(r.Context()),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

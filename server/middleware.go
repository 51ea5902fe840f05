package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/botguard/observe"
)

// Recovery turns a handler panic into a 500 JSON error and logs the stack.
func Recovery(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error(r.Context(), "handler panic",
						observe.F("request_id", RequestIDFromContext(r.Context())),
						observe.F("panic", fmt.Sprint(v)),
						observe.F("stack", string(debug.Stack())),
					)
					writeError(w, r, http.StatusInternalServerError, "internal", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request after it completes.
func AccessLog(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []observe.Field{
				observe.F("request_id", RequestIDFromContext(r.Context())),
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("status", status),
				observe.F("bytes", ww.BytesWritten()),
				observe.F("duration_ms", time.Since(start).Milliseconds()),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "request failed", fields...)
				return
			}
			logger.Debug(r.Context(), "request", fields...)
		})
	}
}

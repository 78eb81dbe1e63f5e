package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlearn/tenantd/pkg/logger"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// HTTPLogger logs all HTTP requests.
func HTTPLogger(next http.Handler) http.Handler {
	return HTTPLoggerWithLevel(next, "info")
}

// HTTPLoggerWithLevel logs HTTP requests based on configured level:
// "silent", "error" (5xx only), "warn" (4xx+5xx), "info" (all requests).
func HTTPLoggerWithLevel(next http.Handler, logLevel string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		var logEvent *zerolog.Event
		switch logLevel {
		case "silent":
		case "error":
			if rw.statusCode >= 500 {
				logEvent = logger.ErrorEvent()
			}
		case "warn":
			if rw.statusCode >= 500 {
				logEvent = logger.ErrorEvent()
			} else if rw.statusCode >= 400 {
				logEvent = logger.WarnEvent()
			}
		default:
			if rw.statusCode >= 500 {
				logEvent = logger.ErrorEvent()
			} else if rw.statusCode >= 400 {
				logEvent = logger.WarnEvent()
			} else {
				logEvent = logger.InfoEvent()
			}
		}

		if logEvent == nil {
			return
		}

		logEvent = logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("host", r.Host).
			Str("remote_addr", r.RemoteAddr).
			Int("status", rw.statusCode).
			Int64("bytes", rw.written).
			Dur("duration", duration)

		if caller := CallerFromContext(r.Context()); caller != "" {
			logEvent = logEvent.Str("caller", caller)
		}

		if r.URL.RawQuery != "" {
			logEvent = logEvent.Str("query", r.URL.RawQuery)
		}

		logEvent.Msg("HTTP request")
	})
}

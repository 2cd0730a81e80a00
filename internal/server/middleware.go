package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RequestIDMiddleware attaches a request ID to the context, the context
// logger, and the X-Request-ID response header. An inbound X-Request-ID is
// honored so IDs survive proxy hops.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requestID := request.Header.Get("X-Request-ID")
			ctx := AddRequestID(request.Context(), requestID)

			if requestID == "" {
				requestID = GetRequestID(ctx)
			}
			writer.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs each request with method, path, status, and
// duration. 5xx responses log at error level, 4xx at warn.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: writer, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, request)

			logger := zerolog.Ctx(request.Context()).With().
				Str("method", request.Method).
				Str("path", request.URL.Path).
				Int("status", wrapped.statusCode).
				Str("duration", formatDuration(time.Since(start))).
				Logger()

			msg := http.StatusText(wrapped.statusCode)
			switch {
			case wrapped.statusCode >= 500:
				logger.Error().Msg(msg)
			case wrapped.statusCode >= 400:
				logger.Warn().Msg(msg)
			default:
				logger.Info().Msg(msg)
			}
		})
	}
}

// formatDuration formats a duration with dynamic units so fast requests
// show in µs while longer ones show in ms/s.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	duration = duration.Round(time.Microsecond)
	switch {
	case duration < time.Millisecond:
		return fmt.Sprintf("%dµs", duration.Microseconds())
	case duration < time.Second:
		return fmt.Sprintf("%.2fms", float64(duration)/float64(time.Millisecond))
	case duration < time.Minute:
		return fmt.Sprintf("%.2fs", duration.Seconds())
	default:
		return duration.Truncate(time.Second).String()
	}
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

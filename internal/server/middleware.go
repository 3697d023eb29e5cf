package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// middleware is a function that wraps an http.Handler.
type middleware func(http.Handler) http.Handler

// chain applies multiple middleware in order.
func chain(h http.Handler, mw ...middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// requestIDMiddleware tags each request with an id, reusing a well-formed
// id supplied by a proxy.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// recoveryMiddleware recovers from panics and returns a 500 error.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic recovered",
					slog.Any("err", err),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.String("request_id", requestIDFrom(r.Context())),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// compressMiddleware gzips or deflates responses for clients that accept it.
func compressMiddleware(next http.Handler) http.Handler {
	return handlers.CompressHandler(next)
}

// loggingMiddleware logs HTTP requests with slog when verbose is set.
func loggingMiddleware(logger *slog.Logger, verbose bool) middleware {
	return func(next http.Handler) http.Handler {
		if !verbose {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.LogAttrs(r.Context(), slog.LevelInfo, "http request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.Int("status", m.Code),
				slog.Duration("latency", m.Duration),
				slog.Int64("bytes_out", m.Written),
				slog.String("remote_ip", r.RemoteAddr),
				slog.String("protocol", r.Proto),
				slog.String("request_id", requestIDFrom(r.Context())),
			)
		})
	}
}

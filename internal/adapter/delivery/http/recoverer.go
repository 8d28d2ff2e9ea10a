package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
)

// recoverer turns a handler panic into a 500 with the usual error body.
func recoverer(next http.Handler) http.Handler {
	const op = "adapter.delivery.http.recoverer"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			httplog.LogEntrySetField(r.Context(), "op", slog.StringValue(op))
			httplog.LogEntrySetField(r.Context(), "panic", slog.AnyValue(rec))
			httplog.LogEntrySetField(r.Context(), "stack", slog.StringValue(string(debug.Stack())))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, serverErrorResponse)
		}()

		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/aanand-mishra/students-api/internal/utils/response"
)

type panicBody struct {
	response.Response
	Message string `json:"message"`
}

// Recoverer turns a panic into a 500 INTERNAL_ERROR response. The panic value
// and stack are always logged; they reach the client only when redact is
// false.
func Recoverer(log *slog.Logger, redact bool) func(http.Handler) http.Handler {
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

				stack := string(debug.Stack())
				log.Error("panic while serving request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Any("panic", rec),
					slog.String("stack", stack))

				body := panicBody{
					Response: response.Error(response.InternalError, "Internal Server Error"),
					Message:  "an internal server error occurred",
				}
				if !redact {
					body.Message = fmt.Sprint(rec)
					body.Stack = stack
				}

				_ = response.WriteJSON(w, http.StatusInternalServerError, body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

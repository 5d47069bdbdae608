// Package middleware holds the HTTP middleware shared by every route: request
// ids, request logging, CORS, panic recovery and the database gate.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/students-api/internal/connection"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

// StateReader reports the current database connection state.
type StateReader interface {
	State() connection.State
}

type unavailableBody struct {
	response.Response
	Message       string `json:"message"`
	DatabaseState string `json:"database_state"`
	DatabaseCode  int    `json:"database_code"`
}

// RequireConnected answers 503 without calling next unless the database is
// connected.
func RequireConnected(db StateReader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := db.State()
			if state == connection.Connected {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("rejecting request, database unavailable",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("database_state", state.String()),
				slog.String("request_id", RequestIDFromContext(r.Context())))

			WriteUnavailable(w, state)
		})
	}
}

// WriteUnavailable writes the 503 body for state. Handlers use it when the
// connection drops after the gate let a request through.
func WriteUnavailable(w http.ResponseWriter, state connection.State) {
	_ = response.WriteJSON(w, http.StatusServiceUnavailable, unavailableBody{
		Response:      response.Error(response.ServiceUnavailable, "Service Temporarily Unavailable"),
		Message:       "the database is not available, try again later",
		DatabaseState: state.String(),
		DatabaseCode:  int(state),
	})
}

// Package system serves the routes that describe the service itself. None
// of them touch student data, so none of them are behind the database gate.
package system

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/connection"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

const serviceName = "students-api"

// StatusReader reports the connection state with database metadata.
type StatusReader interface {
	Status() connection.Status
}

// Info describes the running instance. ConnectionString may hold
// credentials; it is only ever written out redacted.
type Info struct {
	Version          string
	Env              string
	Addr             string
	RouteStyle       string
	Strategy         string
	ConnectionString string

	// Routes is the route catalog, e.g. "GET /api/students".
	Routes []string
}

type rootBody struct {
	Success     bool     `json:"success"`
	Service     string   `json:"service"`
	Status      string   `json:"status"`
	Database    string   `json:"database"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Endpoints   []string `json:"endpoints"`
}

// Root handles GET /.
func Root(db StatusReader, info Info) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusOK, rootBody{
			Success:     true,
			Service:     serviceName,
			Status:      "online",
			Database:    db.Status().State.String(),
			Version:     info.Version,
			Environment: info.Env,
			Endpoints:   info.Routes,
		})
	}
}

type healthBody struct {
	Status       string  `json:"status"`
	Database     string  `json:"database"`
	DatabaseCode int     `json:"database_code"`
	Timestamp    string  `json:"timestamp"`
	Uptime       float64 `json:"uptime"`
	Service      string  `json:"service"`
}

// Health handles GET /health: 200 while the database is connected, 503
// otherwise. Uptime is counted from started.
func Health(db StatusReader, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := db.Status().State

		body := healthBody{
			Status:       "healthy",
			Database:     state.String(),
			DatabaseCode: int(state),
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Uptime:       time.Since(started).Seconds(),
			Service:      serviceName,
		}

		status := http.StatusOK
		if state != connection.Connected {
			body.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		_ = response.WriteJSON(w, status, body)
	}
}

type databaseInfo struct {
	State string `json:"state"`
	Code  int    `json:"code"`
	Name  string `json:"name,omitempty"`
	Host  string `json:"host,omitempty"`
	Ready bool   `json:"ready"`
}

type infoBody struct {
	Service             string       `json:"service"`
	Version             string       `json:"version"`
	GoVersion           string       `json:"go_version"`
	Environment         string       `json:"environment"`
	Addr                string       `json:"addr"`
	RouteStyle          string       `json:"route_style"`
	RetryStrategy       string       `json:"retry_strategy"`
	Database            databaseInfo `json:"database"`
	HasConnectionString bool         `json:"has_connection_string"`
	ConnectionString    string       `json:"connection_string,omitempty"`
}

// InfoHandler handles GET /info and its /debug alias.
func InfoHandler(db StatusReader, info Info) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := db.Status()

		_ = response.WriteJSON(w, http.StatusOK, infoBody{
			Service:       serviceName,
			Version:       info.Version,
			GoVersion:     runtime.Version(),
			Environment:   info.Env,
			Addr:          info.Addr,
			RouteStyle:    info.RouteStyle,
			RetryStrategy: info.Strategy,
			Database: databaseInfo{
				State: st.State.String(),
				Code:  int(st.State),
				Name:  st.Database,
				Host:  st.Host,
				Ready: st.State == connection.Connected,
			},
			HasConnectionString: info.ConnectionString != "",
			ConnectionString:    config.Redact(info.ConnectionString),
		})
	}
}

type notFoundBody struct {
	Success         bool     `json:"success"`
	Error           string   `json:"error"`
	Message         string   `json:"message"`
	AvailableRoutes []string `json:"available_routes"`
}

// NotFound answers every request no route matched, including a known path
// with an unsupported method.
func NotFound(routes []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("no route", slog.String("method", r.Method), slog.String("path", r.URL.Path))

		_ = response.WriteJSON(w, response.NotFoundRoute.StatusCode(), notFoundBody{
			Success:         false,
			Error:           "Endpoint Not Found",
			Message:         "route " + r.Method + " " + r.URL.Path + " does not exist",
			AvailableRoutes: routes,
		})
	}
}

// Package router assembles the HTTP handler: shared middleware, the system
// routes, and the student routes behind the database gate.
package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/aanand-mishra/students-api/internal/connection"
	"github.com/aanand-mishra/students-api/internal/http/handlers/student"
	"github.com/aanand-mishra/students-api/internal/http/handlers/system"
	"github.com/aanand-mishra/students-api/internal/http/middleware"
	"github.com/aanand-mishra/students-api/internal/storage"
)

// Route styles.
const (
	StyleLegacy = "legacy"
	StyleREST   = "rest"
)

// Database is what the routes need from the connection manager.
type Database interface {
	storage.Storage
	State() connection.State
	Status() connection.Status
}

// Options configures New.
type Options struct {
	RouteStyle      string
	BasePath        string
	EmptyListStatus int

	// Redact hides panic detail from response bodies.
	Redact bool

	// RequestTimeout is the deadline on each request's context. Zero means none.
	RequestTimeout time.Duration

	Info    system.Info
	Started time.Time
}

type studentRoute struct {
	method  string
	pattern string
	handler func(db Database, opts Options) http.HandlerFunc
}

func list(db Database, opts Options) http.HandlerFunc {
	return student.GetList(db, opts.EmptyListStatus)
}
func getByID(db Database, _ Options) http.HandlerFunc { return student.GetByID(db) }
func create(db Database, _ Options) http.HandlerFunc  { return student.New(db) }
func update(db Database, _ Options) http.HandlerFunc  { return student.Update(db) }
func patch(db Database, _ Options) http.HandlerFunc   { return student.Patch(db) }
func remove(db Database, _ Options) http.HandlerFunc  { return student.Delete(db) }

var studentRoutes = map[string][]studentRoute{
	StyleLegacy: {
		{http.MethodGet, "/", list},
		{http.MethodGet, "/{id}", getByID},
		{http.MethodPost, "/new", create},
		{http.MethodPut, "/update/{id}", update},
		{http.MethodPatch, "/upload/{id}", patch},
		{http.MethodDelete, "/drop/user/{id}", remove},
	},
	StyleREST: {
		{http.MethodGet, "/", list},
		{http.MethodPost, "/", create},
		{http.MethodGet, "/{id}", getByID},
		{http.MethodPut, "/{id}", update},
		{http.MethodPatch, "/{id}", patch},
		{http.MethodDelete, "/{id}", remove},
	},
}

var systemRoutes = []string{
	"GET /",
	"GET /health",
	"GET /info",
	"GET /debug",
}

// Catalog lists every route for style under basePath, system routes first.
// An unknown style falls back to legacy.
func Catalog(style, basePath string) []string {
	routes, ok := studentRoutes[style]
	if !ok {
		routes = studentRoutes[StyleLegacy]
	}

	base := strings.TrimSuffix(basePath, "/")
	out := append([]string{}, systemRoutes...)
	for _, rt := range routes {
		path := base
		if rt.pattern != "/" {
			path += rt.pattern
		}
		out = append(out, rt.method+" "+path)
	}
	return out
}

// New returns the application handler.
func New(db Database, opts Options, log *slog.Logger) http.Handler {
	routes, ok := studentRoutes[opts.RouteStyle]
	if !ok {
		opts.RouteStyle = StyleLegacy
		routes = studentRoutes[StyleLegacy]
	}
	if opts.BasePath == "" {
		opts.BasePath = "/api/students"
	}
	if opts.Started.IsZero() {
		opts.Started = time.Now()
	}

	catalog := Catalog(opts.RouteStyle, opts.BasePath)
	info := opts.Info
	info.RouteStyle = opts.RouteStyle
	info.Routes = catalog

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recoverer(log, opts.Redact))
	r.Use(middleware.CORS)
	r.Use(chimiddleware.StripSlashes)
	if opts.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}

	notFound := system.NotFound(catalog)
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/", system.Root(db, info))
	r.Get("/health", system.Health(db, opts.Started))
	r.Get("/info", system.InfoHandler(db, info))
	r.Get("/debug", system.InfoHandler(db, info))

	r.Route(strings.TrimSuffix(opts.BasePath, "/"), func(r chi.Router) {
		// Gate registered routes only, so unknown paths under the base
		// still get the route catalog.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireConnected(db, log))
			for _, rt := range routes {
				r.Method(rt.method, rt.pattern, rt.handler(db, opts))
			}
		})
	})

	return r
}

// Package rest materializes the HTTP surface of the registry: six CRUD
// routes per registered schema, auth-gated per the schema's level,
// plus the service health and metrics routes.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"uerp-backend/application/coordinator"
	"uerp-backend/application/registry"
	"uerp-backend/application/tasks"
	"uerp-backend/domain/schema"
	"uerp-backend/infrastructure/drivers"
	"uerp-backend/pkg/observability"
)

// Server builds the router over the registry and the tier coordinator.
type Server struct {
	logger   *zap.Logger
	registry *registry.Registry
	coord    *coordinator.Coordinator
	auth     drivers.AuthDriver
	pool     *tasks.Pool
	metrics  *observability.Collector
	validate *validator.Validate
	title    string
}

// NewServer wires the HTTP surface. auth may be nil when no identity
// provider is configured; gated schemas then refuse with 401. pool
// receives the backfills collected while serving each request.
func NewServer(logger *zap.Logger, reg *registry.Registry, coord *coordinator.Coordinator, auth drivers.AuthDriver, pool *tasks.Pool, metrics *observability.Collector, title string) *Server {
	return &Server{
		logger:   logger,
		registry: reg,
		coord:    coord,
		auth:     auth,
		pool:     pool,
		metrics:  metrics,
		validate: validator.New(),
		title:    title,
	}
}

// Handler assembles the router. Call after every schema is registered;
// routes are fixed from then on.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.logger))
	router.Use(deferFanouts(s.pool))
	if s.metrics != nil {
		router.Use(requestMetrics(s.metrics))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Organization", "Realm", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/"+s.registry.Service()+"/health", s.handleHealth)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler())
	}

	for _, info := range s.registry.All() {
		s.mount(router, info)
	}
	return router
}

// mount materializes the routes a schema's crud mask permits. Remote
// schemas are resolvable but never served here.
func (s *Server) mount(router chi.Router, info *schema.Info) {
	if info.Provider != "" {
		return
	}
	if info.CRUD.CanCreate() {
		router.Post(info.Path, s.gate(info, verbCreate, s.handleCreate(info)))
		s.logRoute("Create", info)
	}
	if info.CRUD.CanRead() {
		router.Get(info.Path, s.gate(info, verbRead, s.handleSearch(info)))
		router.Get(info.Path+"/count", s.gate(info, verbRead, s.handleCount(info)))
		router.Get(info.Path+"/{id}", s.gate(info, verbRead, s.handleRead(info)))
		s.logRoute("Read", info)
	}
	if info.CRUD.CanUpdate() {
		router.Put(info.Path+"/{id}", s.gate(info, verbUpdate, s.handleUpdate(info)))
		s.logRoute("Update", info)
	}
	if info.CRUD.CanDelete() {
		router.Delete(info.Path+"/{id}", s.gate(info, verbDelete, s.handleDelete(info)))
		s.logRoute("Delete", info)
	}
}

func (s *Server) logRoute(verbName string, info *schema.Info) {
	s.logger.Info("route materialized",
		zap.String("name", verbName+" "+info.Name),
		zap.String("path", info.Path),
		zap.Strings("tags", info.Tags),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, schema.ServiceHealth{
		Title:   s.title,
		Status:  "OK",
		Healthy: true,
	})
}

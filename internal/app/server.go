package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/neurodoc/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/neurodoc/internal/api/middlewares"
)

// Routes bundles what the router serves.
type Routes struct {
	Auth      *handlers.AuthHandler
	Documents *handlers.DocumentHandler
	Query     *handlers.QueryHandler
	Audit     *handlers.AuditHandler
	Health    *handlers.HealthHandler

	JWTSecret      string
	AllowedOrigins []string
	QueryLimiter   *appMiddleware.RateLimiter
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter wires all routes.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Get("/health", rt.Health.Health)
		api.Post("/signup", rt.Auth.Signup)
		api.Post("/login", rt.Auth.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.NewJWTMiddleware(rt.JWTSecret))

			protected.Post("/upload", rt.Documents.UploadDocument)
			protected.Post("/documents/upload", rt.Documents.UploadDocument)
			protected.Get("/documents", rt.Documents.GetDocuments)
			protected.Delete("/documents", rt.Documents.ClearDocuments)
			protected.Get("/documents/filenames", rt.Documents.GetFilenames)
			protected.Delete("/documents/{id}", rt.Documents.DeleteDocument)
			protected.Get("/clauses", rt.Documents.GetClauses)

			protected.Get("/audit", rt.Audit.GetAuditTrail)
			protected.Post("/audit", rt.Audit.GetStatistics)

			protected.Group(func(limited chi.Router) {
				if rt.QueryLimiter != nil {
					limited.Use(rt.QueryLimiter.Middleware)
				}
				limited.Post("/query", rt.Query.QueryDocuments)
			})
		})
	})

	return r
}

// NewServer builds the HTTP server around the router.
func NewServer(port string, rt Routes) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

package receipt

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server handles HTTP requests for receipts
type Server struct {
	service    *Service
	basicAuth  BasicAuth
	router     chi.Router
	httpServer *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) enabled() bool {
	return b.Username != "" || b.Password != ""
}

// NewServer creates a new Server with its routes registered
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		router:    chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	}))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		if s.basicAuth.enabled() {
			r.Use(middleware.BasicAuth("VAT Recogniser", map[string]string{
				s.basicAuth.Username: s.basicAuth.Password,
			}))
		}

		r.Post("/receipts", s.handleUploadReceipt)
		r.Post("/receipts/batch", s.handleUploadBatch)
		r.Get("/receipts", s.handleListReceipts)
		r.Get("/receipts/{id}", s.handleGetReceipt)
		r.Get("/receipts/{id}/file", s.handleGetReceiptFile)
		r.Delete("/receipts/{id}", s.handleDeleteReceipt)
		r.Get("/kpis", s.handleKPIs)
	})
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

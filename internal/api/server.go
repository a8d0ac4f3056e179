// Package api exposes the sync engine to a UI over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/mwantia/loadoutsync/internal/itemnames"
	"github.com/mwantia/loadoutsync/internal/session"
	"github.com/mwantia/loadoutsync/internal/stats"
	"github.com/mwantia/loadoutsync/internal/syncengine"
	"github.com/mwantia/loadoutsync/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Listen      string
	CORSOrigins []string
}

type Server struct {
	engine    *syncengine.Engine
	refresher *stats.Refresher
	catalog   *itemnames.Catalog
	session   *session.Session
	log       log.LoggerService
	validate  *validator.Validate

	httpServer *http.Server
}

func NewServer(engine *syncengine.Engine, refresher *stats.Refresher, catalog *itemnames.Catalog, sess *session.Session, logger log.LoggerService, opts Options) *Server {
	s := &Server{
		engine:    engine,
		refresher: refresher,
		catalog:   catalog,
		session:   sess,
		log:       logger,
		validate:  validator.New(),
	}

	s.httpServer = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.routes(opts.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.logging)

	r.Get("/healthz", s.HandleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.HandleGetSession)
			r.Put("/", s.HandleSetSession)
		})

		r.Route("/loadouts", func(r chi.Router) {
			r.Get("/", s.HandleListLoadouts)
			r.Post("/", s.HandleCreateLoadout)
			r.Get("/view", s.HandleFilteredView)
			r.Post("/refresh", s.HandleRefresh)
			r.Post("/next", s.HandleNextPage)
			r.Post("/import", s.HandleImportBankTag)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetLoadout)
				r.Delete("/", s.HandleDeleteLoadout)
				r.Post("/like", s.HandleToggleLike)
				r.Post("/view", s.HandleRecordView)
				r.Get("/export", s.HandleExportBankTag)
			})
		})

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", s.HandleGetFilters)
			r.Put("/", s.HandleSetFilters)
			r.Delete("/", s.HandleResetFilters)
		})

		r.Get("/tags", s.HandleGetTags)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/", s.HandleGetStats)
			r.Get("/summary", s.HandleGetSummary)
			r.Get("/users/{uid}", s.HandleGetUserStats)
			r.Get("/me", s.HandleGetUserStats)
		})

		r.Get("/items/names", s.HandleGetItemNames)
	})

	return r
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/healthz") || strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("%s %s %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// Serve listens until ctx is cancelled, then shuts down within timeout.
func (s *Server) Serve(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening on '%s'", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	return nil
}

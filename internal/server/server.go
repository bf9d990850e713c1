package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sw33tLie/evscope/internal/utils"
	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/ingest"
	"github.com/sw33tLie/evscope/pkg/storage"
)

// Catalog is the read and import surface the API needs.
type Catalog interface {
	List(ctx context.Context, opts storage.ListOptions) ([]event.Record, error)
	Get(ctx context.Context, id string) (*event.Record, error)
	Import(ctx context.Context, id, importedBy string, notes *string, at time.Time) error
	GetStats(ctx context.Context) (storage.Stats, error)
}

// Runner triggers an ingestion run.
type Runner interface {
	RunOnce(ctx context.Context) (ingest.RunSummary, error)
}

type Server struct {
	Catalog  Catalog
	Runner   Runner       // optional; nil disables POST /api/runs
	Metrics  http.Handler // optional; nil disables /metrics
	Username string
	Password string
	Now      func() time.Time
}

func New(cat Catalog, runner Runner, metrics http.Handler, user, pass string) *Server {
	return &Server{
		Catalog:  cat,
		Runner:   runner,
		Metrics:  metrics,
		Username: user,
		Password: pass,
		Now:      time.Now,
	}
}

// Router builds the HTTP handler. Every route sits behind basic auth when
// credentials are configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(s.basicAuth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Post("/runs", s.handleRun)
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Get("/{id}", s.handleGetEvent)
			r.Post("/{id}/import", s.handleImport)
		})
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		utils.Log.Debugf("HTTP %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

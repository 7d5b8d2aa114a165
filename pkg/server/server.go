package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nsavio/crabdb/pkg/engine"
	"github.com/nsavio/crabdb/pkg/metrics"
)

// Server is the admin HTTP surface: health, Prometheus metrics,
// debug/pool and debug/index JSON snapshots, a compressed single-page
// fetch, a live-stats WebSocket, and a read-only GraphQL pool query.
// It owns no storage of its own — every route reads from the engine it
// wraps.
type Server struct {
	config       *Config
	eng          *engine.Engine
	router       *chi.Mux
	httpSrv      *http.Server
	startTime    time.Time
	promExporter *metrics.PrometheusExporter
}

// New wires a Server around an already-open engine.
func New(config *Config, eng *engine.Engine) (*Server, error) {
	if config.EnableTLS {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.TLSCertFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS certificate file not found: %s", config.TLSCertFile)
		}
		if _, err := os.Stat(config.TLSKeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS key file not found: %s", config.TLSKeyFile)
		}
	}

	promExporter := metrics.NewPrometheusExporter(eng.Metrics, eng.Pool(), eng.Index(), eng.Resource)

	srv := &Server{
		config:       config,
		eng:          eng,
		router:       chi.NewRouter(),
		startTime:    time.Now(),
		promExporter: promExporter,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/metrics", s.handlePrometheusMetrics)
	s.router.Get("/debug/pool", s.handleDebugPool)
	s.router.Get("/debug/index", s.handleDebugIndex)
	s.router.Get("/debug/page/{id}", s.handleDebugPage)
	s.router.Get("/ws/stats", s.handleStatsWebSocket)

	gqlHandler, err := newGraphQLHandler(s.eng)
	if err != nil {
		log.Printf("crabdb: graphql schema build failed, /graphql disabled: %v", err)
	} else {
		s.router.Post("/graphql", gqlHandler.ServeHTTP)
		s.router.Get("/graphiql", graphiQLHandler())
	}
}

func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("error writing metrics: %v", err), http.StatusInternalServerError)
	}
}

func (s *Server) handleDebugPool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool":      s.eng.Pool().Stats(),
		"replacer":  s.eng.Pool().ReplacerStats(),
		"scheduler": s.eng.Pool().SchedulerStats(),
	})
}

func (s *Server) handleDebugIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.Index().Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot_failed", err.Error())
		return
	}

	resp := map[string]interface{}{"snapshot": snap}
	if err := s.eng.Index().VerifyIntegrity(); err != nil {
		resp["integrity_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Start runs the HTTP server until it errors or the process receives an
// interrupt/termination signal, then shuts down gracefully.
func (s *Server) Start() error {
	protocol := "http"
	if s.config.EnableTLS {
		protocol = "https"
	}
	log.Printf("crabdb admin server starting on %s://%s:%d", protocol, s.config.Host, s.config.Port)
	log.Printf("data directory: %s", s.config.DataDir)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpSrv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Printf("received signal: %v", sig)
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the HTTP server. It does not close the
// underlying engine; callers that opened the engine own its lifecycle.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("crabdb: error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorType, message string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
	})
}

// Package httpapi is the HTTP control plane: validation and manual
// execution of programs, read access to the entity catalogue, duplication,
// alarm acknowledgement and point forcing.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smarty-bms/smarty/pkgs/engine"
	"github.com/smarty-bms/smarty/pkgs/store"
)

// Server exposes the control-plane surface over a gorilla/mux router.
type Server struct {
	store  *store.Store
	engine *engine.Engine
	router *mux.Router
}

func NewServer(s *store.Store, e *engine.Engine) *Server {
	srv := &Server{store: s, engine: e, router: mux.NewRouter()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(logMiddleware)

	// program validation and manual execution
	api.HandleFunc("/script/programs/{id:[0-9]+}/validate", s.validateScript).Methods(http.MethodPost)
	api.HandleFunc("/script/programs/{id:[0-9]+}/execute", s.executeScript).Methods(http.MethodPost)
	api.HandleFunc("/fbd/programs/{id:[0-9]+}/execute", s.executeFBD).Methods(http.MethodPost)
	api.HandleFunc("/fbd/programs/{id:[0-9]+}/runtime", s.fbdRuntime).Methods(http.MethodGet)

	// entity catalogue
	api.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id:[0-9]+}/registers", s.listRegisters).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.listGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}/points", s.listPoints).Methods(http.MethodGet)
	api.HandleFunc("/points/{id:[0-9]+}", s.getPoint).Methods(http.MethodGet)
	api.HandleFunc("/points/{id:[0-9]+}/logs", s.listLogs).Methods(http.MethodGet)
	api.HandleFunc("/points/{id:[0-9]+}/force", s.forcePoint).Methods(http.MethodPost)
	api.HandleFunc("/alarms", s.listAlarms).Methods(http.MethodGet)
	api.HandleFunc("/alarms/{id:[0-9]+}/ack", s.ackAlarm).Methods(http.MethodPost)
	api.HandleFunc("/faults", s.listFaults).Methods(http.MethodGet)
	api.HandleFunc("/fbd/programs", s.listFBDPrograms).Methods(http.MethodGet)
	api.HandleFunc("/script/programs", s.listScriptPrograms).Methods(http.MethodGet)

	// duplication
	api.HandleFunc("/devices/{id:[0-9]+}/duplicate", s.duplicate(s.store.DuplicateDevice)).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}/duplicate", s.duplicate(s.store.DuplicateGroup)).Methods(http.MethodPost)
	api.HandleFunc("/fbd/programs/{id:[0-9]+}/duplicate", s.duplicate(s.store.DuplicateFBDProgram)).Methods(http.MethodPost)
	api.HandleFunc("/script/programs/{id:[0-9]+}/duplicate", s.duplicate(s.store.DuplicateScriptProgram)).Methods(http.MethodPost)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
}

// Handler returns the root handler, for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("http listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

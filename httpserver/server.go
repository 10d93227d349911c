// Package httpserver exposes the command facade as a JSON-over-HTTP
// API for the UI shell, plus a long-poll event drain for parser
// progress.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"uedump/facade"
	"uedump/query"
	"uedump/storage"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/gorilla/mux"
)

// Server serves the command API for one Core.
type Server struct {
	core   *facade.Core
	server *http.Server
	log    *logger.Logger
}

func New(addr string, core *facade.Core) *Server {
	s := &Server{
		core: core,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "httpserver")),
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/processes", s.handleProcesses).Methods(http.MethodGet)
	api.HandleFunc("/attach", s.handleAttach).Methods(http.MethodPost)
	api.HandleFunc("/base-addresses", s.handleBaseAddresses).Methods(http.MethodGet)
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/address/fname-pool", s.handleFNamePoolAddress).Methods(http.MethodGet)
	api.HandleFunc("/address/guobject-array", s.handleGUObjectArrayAddress).Methods(http.MethodGet)
	api.HandleFunc("/address/gworld", s.handleGWorldAddress).Methods(http.MethodGet)
	api.HandleFunc("/parse/fname-pool", s.handleParseFNamePool).Methods(http.MethodPost)
	api.HandleFunc("/parse/guobject-array", s.handleParseGUObjectArray).Methods(http.MethodPost)
	api.HandleFunc("/packages", s.handlePackages).Methods(http.MethodGet)
	api.HandleFunc("/objects", s.handleObjects).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/object/{address}", s.handleObjectDetails).Methods(http.MethodGet)
	api.HandleFunc("/fname/{id}", s.handleAnalyzeFName).Methods(http.MethodGet)
	api.HandleFunc("/analyze/{address}", s.handleAnalyzeObject).Methods(http.MethodGet)
	api.HandleFunc("/inspector", s.handleAddInspector).Methods(http.MethodPost)
	api.HandleFunc("/instance", s.handleInstanceDetails).Methods(http.MethodGet)
	api.HandleFunc("/array-elements", s.handleArrayElements).Methods(http.MethodGet)
	api.HandleFunc("/instances", s.handleSearchInstances).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	return r
}

// Start listens and serves until Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.log.Infoln("Listening on", listener.Addr().String())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// writeError maps the typed error kinds onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var notReady *storage.NotReady
	var notFound *query.NotFound
	switch {
	case errors.Is(err, facade.ErrNotAttached):
		status = http.StatusConflict
	case errors.As(err, &notReady):
		status = http.StatusServiceUnavailable
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleEvents drains buffered progress events, waiting up to the
// timeout for the first one. Consumers poll it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ch, cancel := s.core.Bus().Subscribe()
	defer cancel()

	collected := []any{}
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case ev := <-ch:
		collected = append(collected, ev)
	case <-timer.C:
	case <-r.Context().Done():
	}

	// Drain whatever else is buffered without waiting.
	for {
		select {
		case ev := <-ch:
			collected = append(collected, ev)
			continue
		default:
		}
		break
	}

	writeJSON(w, http.StatusOK, collected)
}

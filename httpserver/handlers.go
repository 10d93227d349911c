package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"uedump/process"
	"uedump/query"

	"github.com/gorilla/mux"
)

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	list, err := s.core.FetchSystemProcesses()
	s.respond(w, list, err)
}

type attachRequest struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	msg, err := s.core.AttachToProcess(process.ProcessID(req.PID), req.Name)
	s.respond(w, map[string]string{"message": msg}, err)
}

func (s *Server) handleBaseAddresses(w http.ResponseWriter, r *http.Request) {
	text, err := s.core.ShowBaseAddress()
	s.respond(w, map[string]string{"text": text}, err)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.core.GetUEVersion()
	s.respond(w, map[string]string{"version": version}, err)
}

// Addresses serialize as lowercase 0x-hex; ?format=decimal switches to
// the numeric form.
func (s *Server) respondAddress(w http.ResponseWriter, r *http.Request, addr process.ProcessMemoryAddress, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "decimal" {
		writeJSON(w, http.StatusOK, map[string]uint64{"address": uint64(addr)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex()})
}

func (s *Server) handleFNamePoolAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := s.core.GetFNamePoolAddress()
	s.respondAddress(w, r, addr, err)
}

func (s *Server) handleGUObjectArrayAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := s.core.GetGUObjectArrayAddress()
	s.respondAddress(w, r, addr, err)
}

func (s *Server) handleGWorldAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := s.core.GetGWorldAddress()
	s.respondAddress(w, r, addr, err)
}

func (s *Server) handleParseFNamePool(w http.ResponseWriter, r *http.Request) {
	count, err := s.core.ParseFNamePool(r.Context())
	s.respond(w, map[string]int{"names": count}, err)
}

func (s *Server) handleParseGUObjectArray(w http.ResponseWriter, r *http.Request) {
	count, err := s.core.ParseGUObjectArray(r.Context())
	s.respond(w, map[string]int{"objects": count}, err)
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.core.GetPackages()
	s.respond(w, packages, err)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	objects, err := s.core.GetObjects(q.Get("package"), q.Get("category"))
	s.respond(w, objects, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := query.SearchMode(q.Get("mode"))
	if mode == "" {
		mode = query.SearchObjects
	}
	results, err := s.core.GlobalSearch(q.Get("q"), mode)
	s.respond(w, results, err)
}

func (s *Server) handleObjectDetails(w http.ResponseWriter, r *http.Request) {
	addr, err := strconv.ParseUint(mux.Vars(r)["address"], 0, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address"})
		return
	}
	details, err := s.core.GetObjectDetails(process.ProcessMemoryAddress(addr))
	s.respond(w, details, err)
}

func (s *Server) handleAnalyzeFName(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 0, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid name id"})
		return
	}
	name, err := s.core.AnalyzeFName(uint32(id))
	s.respond(w, map[string]string{"name": name}, err)
}

func (s *Server) handleAnalyzeObject(w http.ResponseWriter, r *http.Request) {
	info, err := s.core.AnalyzeObject(mux.Vars(r)["address"])
	s.respond(w, info, err)
}

type inspectorRequest struct {
	InstanceAddress string `json:"instance_address"`
}

func (s *Server) handleAddInspector(w http.ResponseWriter, r *http.Request) {
	var req inspectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	hierarchy, err := s.core.AddInspector(req.InstanceAddress)
	s.respond(w, hierarchy, err)
}

func (s *Server) handleInstanceDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	samples, err := s.core.GetInstanceDetails(q.Get("instance"), q.Get("class"))
	s.respond(w, samples, err)
}

func (s *Server) handleArrayElements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := strconv.Atoi(q.Get("count"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid count"})
		return
	}
	samples, err := s.core.GetArrayElements(q.Get("address"), q.Get("inner_type"), count)
	s.respond(w, samples, err)
}

func (s *Server) handleSearchInstances(w http.ResponseWriter, r *http.Request) {
	hits, err := s.core.SearchObjectInstances(r.URL.Query().Get("class"))
	s.respond(w, hits, err)
}

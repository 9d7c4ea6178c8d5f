package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/pksebben/Napkin/persist"
	"github.com/pksebben/Napkin/registry"
	"github.com/pksebben/Napkin/state"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Name string `json:"name"`
	}
	// An empty body means "generate a name".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	desc, created, err := s.registry.Create(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, persist.ErrInvalidName) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, desc)
}

func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	if err := s.registry.Destroy(r.Context(), name); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReadDesign(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	result, err := s.registry.Read(ps.ByName("name"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWriteDesign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Mermaid string `json:"mermaid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mermaid == "" {
		writeJSON(w, http.StatusBadRequest, registry.WriteResult{
			Success: false,
			Errors:  []string{"missing or invalid mermaid"},
		})
		return
	}

	result, err := s.registry.Write(r.Context(), ps.ByName("name"), req.Mermaid, state.SourceAgent)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := s.registry.History(ps.ByName("name"), limit)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]state.Snapshot{"history": history})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Timestamp == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid timestamp"})
		return
	}

	text, err := s.registry.Rollback(r.Context(), ps.ByName("name"), req.Timestamp)
	if err != nil {
		if errors.Is(err, state.ErrSnapshotNotFound) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "mermaid": text})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := s.registry.DeleteSnapshot(r.Context(), ps.ByName("name"), ps.ByName("timestamp"))
	if err != nil {
		if errors.Is(err, state.ErrSnapshotNotFound) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeSessionError maps registry errors onto status codes: unknown
// session to 404, anything unexpected to 500.
func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, registry.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

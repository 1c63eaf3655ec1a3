package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toolgate-ai/toolgate/internal/pattern"
)

// PatternListResponse is the response for GET /patterns.
type PatternListResponse struct {
	Patterns       []*pattern.ToolPattern   `json:"patterns"`
	ExactApprovals []*pattern.ExactApproval `json:"exactApprovals"`
}

// AddPatternRequest is the request body for POST /patterns.
type AddPatternRequest struct {
	Type        string `json:"type,omitempty"` // wildcard (default), regex, structured, exact
	Pattern     string `json:"pattern,omitempty"`
	ToolName    string `json:"toolName"`
	Description string `json:"description,omitempty"`

	// Structured component patterns (type "structured" only).
	Command *string `json:"command,omitempty"`
	Args    *string `json:"args,omitempty"`
	Dir     *string `json:"dir,omitempty"`
}

// listPatterns handles GET /patterns.
func (s *Server) listPatterns(w http.ResponseWriter, r *http.Request) {
	resp := PatternListResponse{
		Patterns:       s.store.Patterns(),
		ExactApprovals: s.store.ExactApprovals(),
	}
	if resp.Patterns == nil {
		resp.Patterns = []*pattern.ToolPattern{}
	}
	if resp.ExactApprovals == nil {
		resp.ExactApprovals = []*pattern.ExactApproval{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// getPattern handles GET /patterns/{id}.
func (s *Server) getPattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, exact, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "rule not found: "+id)
		return
	}

	if p != nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, exact)
}

// addPattern handles POST /patterns.
func (s *Server) addPattern(w http.ResponseWriter, r *http.Request) {
	var req AddPatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if req.ToolName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "toolName is required")
		return
	}

	var p *pattern.ToolPattern
	switch req.Type {
	case "", string(pattern.TypeWildcard):
		p = pattern.New(req.Pattern, req.ToolName, req.Description)
	case string(pattern.TypeRegex):
		p = pattern.NewWithType(req.Pattern, req.ToolName, req.Description, pattern.TypeRegex)
	case string(pattern.TypeStructured):
		p = pattern.NewStructured(req.ToolName, req.Description, req.Command, req.Args, req.Dir)
	default:
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown pattern type: "+req.Type)
		return
	}

	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	if err := s.store.AddPattern(p); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// removePattern handles DELETE /patterns/{id}.
func (s *Server) removePattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.Remove(id); err != nil {
		if errors.Is(err, pattern.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "rule not found: "+id)
			return
		}
		writeStoreError(w, err)
		return
	}

	writeSuccess(w)
}

// clearPatterns handles DELETE /patterns. The confirm query parameter must
// be set; clearing the store is not recoverable.
func (s *Server) clearPatterns(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "confirm=true is required to clear the store")
		return
	}

	removed := s.store.Len()
	if err := s.store.Clear(); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"removed": removed,
	})
}

// writeStoreError maps pattern store failures to API errors.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pattern.ErrStoreBusy):
		writeError(w, http.StatusServiceUnavailable, ErrCodeStoreBusy, err.Error())
	case errors.Is(err, pattern.ErrCorruptStore):
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}

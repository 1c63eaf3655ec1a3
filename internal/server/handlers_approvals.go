package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toolgate-ai/toolgate/internal/approval"
)

// ApprovalView is the wire representation of a pending approval request.
type ApprovalView struct {
	ID         string   `json:"id"`
	ToolName   string   `json:"toolName"`
	ContextKey string   `json:"contextKey"`
	Candidates []string `json:"candidates"`
}

// RespondApprovalRequest is the request body for POST /approvals/{id}.
type RespondApprovalRequest struct {
	Choice  string `json:"choice"`
	Pattern string `json:"pattern,omitempty"`
}

var validChoices = map[approval.Choice]bool{
	approval.ChoiceOnce:              true,
	approval.ChoiceSessionExact:      true,
	approval.ChoiceSessionPattern:    true,
	approval.ChoicePersistentExact:   true,
	approval.ChoicePersistentPattern: true,
	approval.ChoiceDeny:              true,
}

// listApprovals handles GET /approvals.
func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	pending := s.coordinator.Pending()

	views := make([]ApprovalView, 0, len(pending))
	for _, req := range pending {
		views = append(views, ApprovalView{
			ID:         req.ID,
			ToolName:   req.Signature.ToolName,
			ContextKey: req.Signature.ContextKey,
			Candidates: req.Candidates,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"approvals": views})
}

// respondApproval handles POST /approvals/{id}. It answers a blocked tool
// call; the waiting dispatcher resumes once the choice is recorded.
func (s *Server) respondApproval(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RespondApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	choice := approval.Choice(req.Choice)
	if !validChoices[choice] {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown approval choice: "+req.Choice)
		return
	}

	var candidates []string
	found := false
	for _, pending := range s.coordinator.Pending() {
		if pending.ID == id {
			found = true
			candidates = pending.Candidates
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no pending approval request: "+id)
		return
	}

	err := s.coordinator.Respond(approval.Response{
		RequestID: id,
		Choice:    choice,
		Pattern:   req.Pattern,
	})
	if err != nil {
		writeErrorWithDetails(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), map[string]any{
			"candidates": candidates,
		})
		return
	}

	writeSuccess(w)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/dispatch"
	"github.com/toolgate-ai/toolgate/internal/provider"
	"github.com/toolgate-ai/toolgate/internal/ruleset"
)

// RunRequest is the request body for POST /run.
type RunRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model,omitempty"`    // "provider/model", defaults to the configured model
	Profile  string `json:"profile,omitempty"`  // policy profile name
	MaxTurns int    `json:"maxTurns,omitempty"` // capped at the serve limit
}

// RunResponse is the result of a completed run.
type RunResponse struct {
	Text      string `json:"text"`
	Turns     int    `json:"turns"`
	ToolCalls int    `json:"toolCalls"`
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rules":  s.store.Len(),
	})
}

// runPrompt handles POST /run. The prompt is driven through the dispatcher;
// tool calls the model makes block on /approvals until answered.
func (s *Server) runPrompt(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = s.appConfig.Profile
	}
	if profileName == "" {
		profileName = "default"
	}
	profile, err := ruleset.Get(s.profiles, profileName)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	modelStr := req.Model
	if modelStr == "" {
		modelStr = s.appConfig.Model
	}

	var providerID, modelID string
	if modelStr != "" {
		providerID, modelID = provider.ParseModelString(modelStr)
	}
	if providerID == "" || modelID == "" {
		m, err := s.providers.DefaultModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "no model configured and no provider available")
			return
		}
		providerID = m.ProviderID
		modelID = m.ID
	}

	p, err := s.providers.Get(providerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown provider: "+providerID)
		return
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = s.appConfig.MaxTurns
	}
	if maxTurns <= 0 || maxTurns > dispatch.DefaultMaxTurnsServe {
		maxTurns = dispatch.DefaultMaxTurnsServe
	}

	host := dispatch.NewProviderHost(p, modelID, 0, 0)
	d := dispatch.New(host, s.tools, s.coordinator, dispatch.Options{
		MaxTurns:     maxTurns,
		WorkDir:      getDirectory(r.Context()),
		Profile:      profile,
		SystemPrompt: strings.Join(s.appConfig.Instructions, "\n\n"),
	})

	outcome, err := d.Run(r.Context(), req.Prompt)
	if err != nil {
		var turnLimit *dispatch.TurnLimitError
		switch {
		case errors.As(err, &turnLimit):
			writeErrorWithDetails(w, http.StatusUnprocessableEntity, ErrCodeTurnLimit, err.Error(), map[string]any{
				"turns": turnLimit.Turns,
			})
		case approval.IsDenied(err):
			writeError(w, http.StatusForbidden, ErrCodePermissionDenied, err.Error())
		case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
			// Client went away; nothing useful to write.
		default:
			writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		Text:      outcome.Text,
		Turns:     outcome.Turns,
		ToolCalls: outcome.ToolCalls,
	})
}

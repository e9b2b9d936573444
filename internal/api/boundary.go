package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codelion/codelion/internal/auth"
	"github.com/codelion/codelion/internal/gemini"
)

const maxBoundaryBody = 64 << 10

// githubAuth exchanges an OAuth code. The response is always 200; failures
// are reported in the body.
func (s *Server) githubAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBoundaryBody)).Decode(&req); err != nil {
		slog.Debug("decode auth request", "error", err)
		writeJSON(w, http.StatusOK, auth.Result{Message: auth.MsgGeneric})
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusOK, auth.Result{Message: auth.MsgCodeRequired})
		return
	}
	if s.exchanger == nil {
		slog.Warn("github auth requested but oauth is not configured")
		writeJSON(w, http.StatusOK, auth.Result{Message: auth.MsgGeneric})
		return
	}
	writeJSON(w, http.StatusOK, s.exchanger.Exchange(r.Context(), req.Code))
}

// validateGeminiKey probes a Gemini key. The response is always 200.
func (s *Server) validateGeminiKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBoundaryBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, gemini.Validation{Error: "Invalid request"})
		return
	}
	if s.validator == nil {
		writeJSON(w, http.StatusOK, gemini.Validation{Error: gemini.MsgKeyInvalid})
		return
	}
	writeJSON(w, http.StatusOK, s.validator.Validate(r.Context(), req.APIKey))
}

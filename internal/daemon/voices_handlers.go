package daemon

import (
	"encoding/json"
	"net/http"
	"strings"

	"ladle/internal/api"
	"ladle/internal/tts"
)

func (s *apiServer) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	voices := s.daemon.synth.Voices(r.Context(), true)
	s.writeJSON(w, http.StatusOK, api.VoiceListResponse{Voices: voices})
}

// handleUserVoice covers GET and PUT on /api/users/{id}/voice.
func (s *apiServer) handleUserVoice(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	userID, tail, found := strings.Cut(rest, "/")
	if !found || userID == "" || tail != "voice" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		stored, err := s.daemon.store.GetUserVoice(r.Context(), userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.UserVoiceResponse{
			UserID:  userID,
			VoiceID: tts.ResolveVoice(stored),
		})
	case http.MethodPut:
		var req api.UserVoiceUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !tts.IsSupportedVoice(req.VoiceID) {
			s.writeError(w, http.StatusBadRequest, "Voice is not supported.")
			return
		}
		if err := s.daemon.store.SetUserVoice(r.Context(), userID, req.VoiceID); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.UserVoiceResponse{UserID: userID, VoiceID: req.VoiceID})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

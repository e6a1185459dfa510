package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// maxCallbackBody bounds webhook payload size.
const maxCallbackBody = 1 << 20

// callbackHandler consumes one channel event and responds with the
// ordered reply messages.
func (s *Server) callbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		slog.Error("Server.callbackHandler failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("failed to read request body"))
		return
	}

	var event models.Event
	if err := json.Unmarshal(body, &event); err != nil {
		slog.Error("Server.callbackHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON payload"))
		return
	}
	if !models.IsValidEventKind(event.Kind) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("unknown event kind"))
		return
	}
	if event.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("missing user id"))
		return
	}

	slog.Debug("Server.callbackHandler dispatching", "kind", event.Kind)
	replies := s.controller.Handle(r.Context(), event)
	if replies == nil {
		replies = []models.Message{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(replies))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "ok"}))
}

package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// MessageHandler processes one chat message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, req MessageRequest) *Response
}

// Handler wires HTTP requests to the orchestrator.
type Handler struct {
	orchestrator MessageHandler
	logger       *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(orchestrator MessageHandler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// chatRequest accepts the older field names still sent by some clients.
type chatRequest struct {
	MessageRequest
	MessageText       string `json:"messageText,omitempty"`
	PatientIdentifier string `json:"patientIdentifier,omitempty"`
}

func (c chatRequest) normalize() MessageRequest {
	req := c.MessageRequest
	if strings.TrimSpace(req.UserMessage) == "" {
		req.UserMessage = c.MessageText
	}
	if strings.TrimSpace(req.PatientID) == "" {
		req.PatientID = c.PatientIdentifier
	}
	return req
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, &Response{Success: false, NextAction: ActionError, Message: emptyMessageReply, Error: "invalid request body"})
		return
	}
	req := body.normalize()
	if strings.TrimSpace(req.UserMessage) == "" {
		h.writeJSON(w, http.StatusBadRequest, &Response{Success: false, NextAction: ActionError, Message: emptyMessageReply, Error: "userMessage is required"})
		return
	}

	resp := h.orchestrator.HandleMessage(r.Context(), req)
	status := http.StatusOK
	if resp.NextAction == ActionError {
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

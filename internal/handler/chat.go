package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/agent"
	"github.com/arixa/arixa/internal/models"
	"github.com/arixa/arixa/internal/security"
)

// ChatHandler runs chat messages through the conversation loop.
type ChatHandler struct {
	manager     *agent.Manager
	validator   *security.PromptValidator
	auditLogger *security.AuditLogger
	maxTimeout  int
}

func NewChatHandler(
	m *agent.Manager,
	validator *security.PromptValidator,
	auditLogger *security.AuditLogger,
	maxTimeout int,
) *ChatHandler {
	return &ChatHandler{
		manager:     m,
		validator:   validator,
		auditLogger: auditLogger,
		maxTimeout:  maxTimeout,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults(h.maxTimeout)

	if req.SessionID != "" && !models.ValidSessionID(req.SessionID) {
		models.WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	apiKey := r.Header.Get("X-API-Key")
	backend := h.manager.Backend().Name()
	start := time.Now()

	if v := h.validator.Validate(req.Message); !v.Valid {
		h.auditLogger.LogChatRequest(req.Message, apiKey, backend, false, 0, time.Since(start).Milliseconds())
		models.WriteError(w, http.StatusBadRequest, "message validation failed: "+v.Message)
		return
	}

	conv, err := h.manager.Get(r.Context(), req.SessionID)
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	res, err := conv.Execute(ctx, req.Message)
	h.auditLogger.LogChatRequest(req.Message, apiKey, backend, true, res.Iterations, time.Since(start).Milliseconds())

	resp := models.ChatResponse{
		SessionID:     conv.ID(),
		Reply:         res.Reply(),
		Iterations:    res.Iterations,
		ToolsUsed:     res.ToolsUsed,
		BoundExceeded: res.BoundExceeded,
		Backend:       backend,
	}
	if resp.ToolsUsed == nil {
		resp.ToolsUsed = []string{}
	}
	if err != nil {
		resp.Interrupted = true
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Warn().Err(err).Str("session", conv.ID()).Msg("chat interrupted")
		models.WriteJSON(w, status, resp)
		return
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/chat/{session_id}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if !models.ValidSessionID(id) {
		models.WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.manager.Delete(r.Context(), id); err != nil {
		models.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": id})
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/arixa/arixa/internal/agent"
	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/models"
	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/session"
)

// SessionHeader selects the conversation whose session an RPC call runs in.
const SessionHeader = "X-Session-ID"

// ToolsHandler serves the catalog and the invocation envelope over HTTP.
type ToolsHandler struct {
	catalog    *catalog.Catalog
	dispatcher *protocol.Dispatcher
	manager    *agent.Manager
	workingDir string
}

func NewToolsHandler(cat *catalog.Catalog, d *protocol.Dispatcher, m *agent.Manager, workingDir string) *ToolsHandler {
	return &ToolsHandler{catalog: cat, dispatcher: d, manager: m, workingDir: workingDir}
}

// List handles GET /api/v1/tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	specs := h.catalog.Specs()
	models.WriteJSON(w, http.StatusOK, models.ToolsResponse{Tools: specs, Count: len(specs)})
}

// RPC handles POST /api/v1/rpc. Envelope errors are answered with 200 and an
// error member, as on the line stream. With an X-Session-ID header the call
// shares the session (and current project) of that chat conversation.
func (h *ToolsHandler) RPC(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteJSON(w, http.StatusOK, protocol.Response{
			Error: &protocol.Error{Code: protocol.CodeParseError, Message: "parse error: " + err.Error()},
		})
		return
	}

	sess := session.New(h.workingDir)
	if id := r.Header.Get(SessionHeader); id != "" {
		if !models.ValidSessionID(id) {
			models.WriteError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		conv, err := h.manager.Get(r.Context(), id)
		if err != nil {
			models.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sess = conv.Session()
	}

	models.WriteJSON(w, http.StatusOK, h.dispatcher.Handle(r.Context(), sess, req))
}

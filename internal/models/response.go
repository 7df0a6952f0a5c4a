package models

import "github.com/arixa/arixa/internal/catalog"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ToolsResponse is returned by GET /api/v1/tools
type ToolsResponse struct {
	Tools []catalog.Spec `json:"tools"`
	Count int            `json:"count"`
}

// ChatResponse is returned by POST /api/v1/chat
type ChatResponse struct {
	SessionID     string   `json:"session_id"`
	Reply         string   `json:"reply"`
	Iterations    int      `json:"iterations"`
	ToolsUsed     []string `json:"tools_used"`
	BoundExceeded bool     `json:"bound_exceeded"`
	Interrupted   bool     `json:"interrupted,omitempty"`
	Backend       string   `json:"backend"`
}

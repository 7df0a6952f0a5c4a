// Package llm defines the boundary between the orchestration loop and the AI
// backends. Backends live in subpackages; the provider package builds one
// by name.
package llm

import (
	"context"
	"fmt"

	"github.com/arixa/arixa/internal/catalog"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolCall is a tool invocation requested by the AI.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Reply is one backend answer.
type Reply struct {
	Text string
	// ToolCalls holds native tool-use requests. Backends without native
	// tool use leave it empty and rely on directives in Text.
	ToolCalls []ToolCall
}

// Backend is an AI chat backend.
type Backend interface {
	Name() string
	// Chat sends the history and returns the reply. Failures are reported
	// as descriptive text in the reply, never as an error.
	Chat(ctx context.Context, history []Turn, systemPrompt string, tools []catalog.Spec) Reply
	// Available reports whether the backend can be used. It has no side
	// effects beyond a short connectivity probe.
	Available(ctx context.Context) bool
}

// ErrorReply turns a backend failure into reply text.
func ErrorReply(err error) Reply {
	return Reply{Text: fmt.Sprintf("API error: %v", err)}
}

// Package mock is an offline backend. By default it answers with canned
// directives; tests script it with a sequence of replies.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
)

const createProjectDirective = "```json\n" + `{
    "action": "tool_call",
    "tool": "vivado_create_project",
    "parameters": {
        "project_name": "new_project",
        "project_path": "~/fpga_projects/new_project",
        "part": "xc7a35tcsg324-1"
    }
}` + "\n```"

const replyDirective = "```json\n" + `{
    "action": "reply",
    "message": "Arixa is running in test mode. Configure an AI provider to use the full feature set."
}` + "\n```"

const doneDirective = "```json\n" + `{
    "action": "reply",
    "message": "Done. The tool results are shown above."
}` + "\n```"

// Call records one Chat invocation.
type Call struct {
	History      []llm.Turn
	SystemPrompt string
	Tools        []catalog.Spec
}

// Backend is safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	replies []llm.Reply
	next    int
	calls   []Call
}

// New returns a backend with the built-in pattern replies.
func New() *Backend {
	return &Backend{}
}

// Script returns a backend that answers with replies in order. Once
// exhausted, the last reply repeats.
func Script(replies ...llm.Reply) *Backend {
	return &Backend{replies: replies}
}

func (b *Backend) Name() string { return "mock" }

func (b *Backend) Available(ctx context.Context) bool { return true }

func (b *Backend) Chat(ctx context.Context, history []llm.Turn, systemPrompt string, tools []catalog.Spec) llm.Reply {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := make([]llm.Turn, len(history))
	copy(h, history)
	b.calls = append(b.calls, Call{History: h, SystemPrompt: systemPrompt, Tools: tools})

	if len(b.replies) > 0 {
		r := b.replies[b.next]
		if b.next < len(b.replies)-1 {
			b.next++
		}
		return r
	}
	return patternReply(history)
}

// Calls returns the recorded invocations.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

func patternReply(history []llm.Turn) llm.Reply {
	var last string
	if len(history) > 0 {
		last = strings.ToLower(history[len(history)-1].Content)
	}
	// tool output is folded back as a user turn; answer it instead of
	// matching keywords that the output happens to echo
	if strings.HasPrefix(last, "tool results:") {
		return llm.Reply{Text: doneDirective}
	}
	if strings.Contains(last, "create") && strings.Contains(last, "project") {
		return llm.Reply{Text: createProjectDirective}
	}
	return llm.Reply{Text: replyDirective}
}

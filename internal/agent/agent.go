// Package agent runs the conversation loop: it asks the AI backend for the
// next step, executes the tool calls it requests and feeds the outcomes back
// until the AI answers or the iteration bound is hit.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/extract"
	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/session"
	"github.com/arixa/arixa/internal/store"
)

// DefaultMaxIterations bounds the AI calls made for one input.
const DefaultMaxIterations = 10

// ToolResultsPrefix starts the user turn that carries tool outcomes.
const ToolResultsPrefix = "Tool results:"

// Result is what one Execute produced.
type Result struct {
	Text          string   `json:"text"`
	Iterations    int      `json:"iterations"`
	ToolsUsed     []string `json:"tools_used"`
	BoundExceeded bool     `json:"bound_exceeded"`
}

// Reply is the text to show a human: the message of a reply directive when
// the AI answered with one, the raw text otherwise.
func (r Result) Reply() string {
	if !r.BoundExceeded {
		if m, ok := extract.Message(r.Text); ok {
			return m
		}
	}
	return r.Text
}

// Outcome is one executed tool call as reported back to the AI.
type Outcome struct {
	Tool    string         `json:"tool"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithMaxIterations sets the iteration bound. Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(c *Conversation) {
		if n > 0 {
			c.maxIter = n
		}
	}
}

// WithPromptInfo sets the environment described in the system prompt.
func WithPromptInfo(info PromptInfo) Option {
	return func(c *Conversation) { c.info = info }
}

// WithStore saves the transcript after every Execute.
func WithStore(s store.Store) Option {
	return func(c *Conversation) { c.store = s }
}

// WithHistory seeds the conversation, e.g. with a transcript loaded from a store.
func WithHistory(h []llm.Turn) Option {
	return func(c *Conversation) {
		c.history = append([]llm.Turn(nil), h...)
	}
}

// WithExtractor replaces the directive extractor used when a reply carries
// no native tool calls.
func WithExtractor(fn func(string) []llm.ToolCall) Option {
	return func(c *Conversation) { c.extract = fn }
}

// Conversation owns one history. Execute calls are serialized.
type Conversation struct {
	mu sync.Mutex

	backend llm.Backend
	catalog *catalog.Catalog
	invoker protocol.Invoker
	sess    *session.Context
	store   store.Store
	extract func(string) []llm.ToolCall

	maxIter int
	info    PromptInfo
	prompt  promptCache
	history []llm.Turn
}

// New creates a conversation. Tools are described from cat and invoked
// through inv with sess as their session context.
func New(backend llm.Backend, cat *catalog.Catalog, inv protocol.Invoker, sess *session.Context, opts ...Option) *Conversation {
	c := &Conversation{
		backend: backend,
		catalog: cat,
		invoker: inv,
		sess:    sess,
		extract: extract.Extract,
		maxIter: DefaultMaxIterations,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ID is the id of the conversation's session.
func (c *Conversation) ID() string {
	return c.sess.ID()
}

// Session is the context handed to every tool call of this conversation.
func (c *Conversation) Session() *session.Context {
	return c.sess
}

// Backend returns the AI backend in use.
func (c *Conversation) Backend() llm.Backend {
	return c.backend
}

// Execute runs input to a final answer. ctx is checked between iterations
// only: once an AI call or a tool call has started it runs to completion or
// to its own timeout. On cancellation the partial text is returned along
// with ctx.Err().
func (c *Conversation) Execute(ctx context.Context, input string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.persist(ctx)

	c.history = append(c.history, llm.Turn{Role: llm.RoleUser, Content: input})
	runCtx := context.WithoutCancel(ctx)

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			c.appendAssistant(strings.TrimSpace(res.Text + "\n\n[interrupted before a final answer]"))
			return res, err
		}
		if res.Iterations >= c.maxIter {
			res.BoundExceeded = true
			res.Text += fmt.Sprintf("\n\n[bound exceeded: reached %d iterations without a final answer]", c.maxIter)
			c.appendAssistant(res.Text)
			log.Warn().Str("session", c.ID()).Int("iterations", res.Iterations).Msg("iteration bound exceeded")
			return res, nil
		}

		res.Iterations++
		system := c.prompt.get(c.catalog, c.info)
		reply := c.backend.Chat(runCtx, c.snapshot(), system, c.catalog.Specs())
		res.Text = reply.Text

		calls := reply.ToolCalls
		if len(calls) > 0 {
			if strings.Contains(reply.Text, "```") {
				log.Debug().Str("session", c.ID()).Msg("native tool calls present, text directives ignored")
			}
		} else {
			calls = c.extract(reply.Text)
		}

		log.Debug().
			Str("session", c.ID()).
			Str("backend", c.backend.Name()).
			Int("iteration", res.Iterations).
			Int("tool_calls", len(calls)).
			Msg("ai reply")

		if len(calls) == 0 {
			c.appendAssistant(reply.Text)
			return res, nil
		}

		c.appendAssistant(summarize(reply.Text, calls))
		outcomes := make([]Outcome, 0, len(calls))
		for _, call := range calls {
			outcomes = append(outcomes, c.invoke(runCtx, call))
			res.ToolsUsed = append(res.ToolsUsed, call.Name)
		}
		c.history = append(c.history, llm.Turn{Role: llm.RoleUser, Content: foldOutcomes(outcomes)})
	}
}

func (c *Conversation) invoke(ctx context.Context, call llm.ToolCall) Outcome {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	resp := c.invoker.Invoke(ctx, c.sess, call.Name, args)
	o := Outcome{Tool: call.Name}
	if !resp.OK() {
		o.Error = resp.Error.Message
		return o
	}
	o.Success = true
	o.Result = resp.Payload()
	// handlers report expected failures (non-zero exit, rejected command)
	// inside the payload
	if ok, present := o.Result["success"].(bool); present && !ok {
		o.Success = false
		if msg, _ := o.Result["error"].(string); msg != "" {
			o.Error = msg
		}
	}
	return o
}

func (c *Conversation) appendAssistant(text string) {
	c.history = append(c.history, llm.Turn{Role: llm.RoleAssistant, Content: text})
}

func (c *Conversation) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(context.WithoutCancel(ctx), c.ID(), c.history); err != nil {
		log.Warn().Err(err).Str("session", c.ID()).Msg("save transcript failed")
	}
}

// History returns a copy of the turns so far. It waits for a running
// Execute to finish.
func (c *Conversation) History() []llm.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Conversation) snapshot() []llm.Turn {
	out := make([]llm.Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Reset clears the history and the saved transcript. It waits for a
// running Execute to finish.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	if c.store != nil {
		return c.store.Delete(ctx, c.ID())
	}
	return nil
}

func summarize(text string, calls []llm.ToolCall) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return "Calling tools: " + strings.Join(names, ", ")
}

func foldOutcomes(outcomes []Outcome) string {
	var sb strings.Builder
	sb.WriteString(ToolResultsPrefix)
	for _, o := range outcomes {
		raw, err := json.Marshal(o)
		if err != nil {
			raw, _ = json.Marshal(Outcome{Tool: o.Tool, Error: fmt.Sprintf("encode result: %v", err)})
		}
		sb.WriteByte('\n')
		sb.Write(raw)
	}
	return sb.String()
}

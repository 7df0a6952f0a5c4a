// Package gemini is the Google Gemini backend, using native function calling.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
)

const DefaultModel = "gemini-1.5-pro"

type Backend struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// New creates a Gemini backend. The client is connected on first use.
func New(apiKey, model string) *Backend {
	if model == "" {
		model = DefaultModel
	}
	return &Backend{apiKey: apiKey, model: model}
}

func (b *Backend) Name() string { return "gemini" }

func (b *Backend) Available(ctx context.Context) bool {
	return b.apiKey != ""
}

func (b *Backend) connect(ctx context.Context) (*genai.Client, error) {
	b.once.Do(func() {
		if b.apiKey == "" {
			b.initErr = errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
			return
		}
		// the client outlives the first call's context
		b.client, b.initErr = genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(b.apiKey))
		if b.initErr != nil {
			b.initErr = fmt.Errorf("gemini init: %w", b.initErr)
		}
	})
	return b.client, b.initErr
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *Backend) Chat(ctx context.Context, history []llm.Turn, systemPrompt string, tools []catalog.Spec) llm.Reply {
	if len(history) == 0 {
		return llm.ErrorReply(errors.New("empty conversation"))
	}
	client, err := b.connect(ctx)
	if err != nil {
		return llm.ErrorReply(err)
	}

	model := client.GenerativeModel(b.model)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, s := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  toSchema(s),
			}
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cs := model.StartChat()
	last := history[len(history)-1]
	for _, t := range history[:len(history)-1] {
		role := "user"
		if t.Role == llm.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		log.Error().Err(err).Str("backend", b.Name()).Msg("LLM call failed")
		return llm.ErrorReply(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.ErrorReply(errors.New("gemini: empty response"))
	}

	var reply llm.Reply
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			reply.Text += string(p)
		case genai.FunctionCall:
			args := p.Args
			if args == nil {
				args = map[string]any{}
			}
			reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{Name: p.Name, Arguments: args})
		}
	}
	log.Debug().Str("backend", b.Name()).Int("tool_calls", len(reply.ToolCalls)).Msg("LLM reply")
	return reply
}

var schemaTypes = map[catalog.ParamType]genai.Type{
	catalog.TypeString:  genai.TypeString,
	catalog.TypeInteger: genai.TypeInteger,
	catalog.TypeNumber:  genai.TypeNumber,
	catalog.TypeBoolean: genai.TypeBoolean,
	catalog.TypeArray:   genai.TypeArray,
	catalog.TypeObject:  genai.TypeObject,
}

func toSchema(s catalog.Spec) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject, Properties: make(map[string]*genai.Schema, len(s.Parameters))}
	for name, p := range s.Parameters {
		prop := &genai.Schema{Type: schemaTypes[p.Type], Description: p.Description}
		if p.Type == catalog.TypeArray {
			prop.Items = &genai.Schema{Type: genai.TypeString}
		}
		schema.Properties[name] = prop
		if p.Required {
			schema.Required = append(schema.Required, name)
		}
	}
	slices.Sort(schema.Required)
	return schema
}

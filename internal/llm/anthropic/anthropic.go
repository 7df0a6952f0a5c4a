// Package anthropic is the Claude backend, with native tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
)

const DefaultModel = "claude-sonnet-4-20250514"

// Backend wraps the Anthropic messages API. Any Anthropic-compatible
// endpoint works through baseURL.
type Backend struct {
	client    *anthropic.Client
	apiKey    string
	model     string
	maxTokens int
}

// New creates a Claude backend.
func New(apiKey, model, baseURL string) *Backend {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Backend{
		client:    anthropic.NewClient(opts...),
		apiKey:    apiKey,
		model:     model,
		maxTokens: 4096,
	}
}

func (b *Backend) Name() string { return "claude" }

// Available reports whether an API key is configured.
func (b *Backend) Available(ctx context.Context) bool {
	return b.apiKey != ""
}

func (b *Backend) Chat(ctx context.Context, history []llm.Turn, systemPrompt string, tools []catalog.Spec) llm.Reply {
	if len(history) == 0 {
		return llm.ErrorReply(errors.New("empty conversation"))
	}
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range history {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == llm.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(b.model)),
		MaxTokens: anthropic.F(int64(b.maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if len(tools) > 0 {
		toolParams := make([]anthropic.ToolUnionUnionParam, len(tools))
		for i, s := range tools {
			toolParams[i] = anthropic.ToolParam{
				Name:        anthropic.String(s.Name),
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.F[interface{}](s.JSONSchema()),
			}
		}
		params.Tools = anthropic.F(toolParams)
	}
	if systemPrompt != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(systemPrompt),
		})
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("backend", b.Name()).Msg("LLM call failed")
		return llm.ErrorReply(err)
	}

	var reply llm.Reply
	for _, block := range resp.Content {
		switch blk := block.AsUnion().(type) {
		case anthropic.TextBlock:
			reply.Text += blk.Text
		case anthropic.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal(blk.Input, &input); err != nil {
				log.Warn().Err(err).Str("tool", blk.Name).Msg("failed to parse tool input")
				input = map[string]any{}
			}
			reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{Name: blk.Name, Arguments: input})
		}
	}
	log.Debug().
		Str("backend", b.Name()).
		Str("stop_reason", string(resp.StopReason)).
		Int("tool_calls", len(reply.ToolCalls)).
		Msg("LLM reply")
	return reply
}

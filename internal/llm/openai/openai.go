// Package openai is the ChatGPT backend, using native function calling.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
)

const DefaultModel = openai.GPT4TurboPreview

type Backend struct {
	client *openai.Client
	apiKey string
	model  string
}

// New creates a ChatGPT backend. baseURL points it at any OpenAI-compatible API.
func New(apiKey, model, baseURL string) *Backend {
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Backend{client: openai.NewClientWithConfig(cfg), apiKey: apiKey, model: model}
}

func (b *Backend) Name() string { return "chatgpt" }

func (b *Backend) Available(ctx context.Context) bool {
	return b.apiKey != ""
}

func (b *Backend) Chat(ctx context.Context, history []llm.Turn, systemPrompt string, tools []catalog.Spec) llm.Reply {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == llm.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	req := openai.ChatCompletionRequest{Model: b.model, Messages: messages}
	for _, s := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		})
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("backend", b.Name()).Msg("LLM call failed")
		return llm.ErrorReply(err)
	}
	if len(resp.Choices) == 0 {
		return llm.ErrorReply(errors.New("no response from OpenAI"))
	}

	msg := resp.Choices[0].Message
	reply := llm.Reply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("failed to parse tool arguments")
				args = map[string]any{}
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	log.Debug().
		Str("backend", b.Name()).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Int("tool_calls", len(reply.ToolCalls)).
		Msg("LLM reply")
	return reply
}

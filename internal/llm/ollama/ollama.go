// Package ollama is the local-model backend. Local models get the tool list
// through the system prompt and answer with fenced JSON directives.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3"

	probeTimeout = 2 * time.Second
)

type Backend struct {
	client *ollama.Client
	model  string
	host   string
}

// New creates a local backend talking to the Ollama server at host.
func New(host, model string) (*Backend, error) {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	return &Backend{client: ollama.NewClient(u, httpClient), model: model, host: host}, nil
}

func (b *Backend) Name() string { return "local" }

// Available probes the Ollama server with a short timeout.
func (b *Backend) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := b.client.Heartbeat(ctx); err != nil {
		log.Debug().Err(err).Str("host", b.host).Msg("ollama not reachable")
		return false
	}
	return true
}

// Chat ignores tools; they are described in the system prompt.
func (b *Backend) Chat(ctx context.Context, history []llm.Turn, systemPrompt string, _ []catalog.Spec) llm.Reply {
	messages := make([]ollama.Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: systemPrompt})
	}
	for _, t := range history {
		messages = append(messages, ollama.Message{Role: string(t.Role), Content: t.Content})
	}

	stream := false
	req := &ollama.ChatRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   &stream,
	}

	var text strings.Builder
	err := b.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("backend", b.Name()).Msg("LLM call failed")
		return llm.ErrorReply(fmt.Errorf("cannot reach Ollama at %s: %w", b.host, err))
	}
	return llm.Reply{Text: text.String()}
}

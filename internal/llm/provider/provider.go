// Package provider builds an AI backend by name from configuration.
package provider

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/config"
	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/llm/anthropic"
	"github.com/arixa/arixa/internal/llm/gemini"
	"github.com/arixa/arixa/internal/llm/mock"
	"github.com/arixa/arixa/internal/llm/ollama"
	"github.com/arixa/arixa/internal/llm/openai"
)

type constructor func(cfg config.Lookup) (llm.Backend, error)

var constructors = map[string]constructor{
	"claude": func(cfg config.Lookup) (llm.Backend, error) {
		return anthropic.New(get(cfg, "ai.claude.api_key"), get(cfg, "ai.claude.model"), get(cfg, "ai.claude.base_url")), nil
	},
	"chatgpt": func(cfg config.Lookup) (llm.Backend, error) {
		return openai.New(get(cfg, "ai.chatgpt.api_key"), get(cfg, "ai.chatgpt.model"), get(cfg, "ai.chatgpt.base_url")), nil
	},
	"gemini": func(cfg config.Lookup) (llm.Backend, error) {
		return gemini.New(get(cfg, "ai.gemini.api_key"), get(cfg, "ai.gemini.model")), nil
	},
	"local": func(cfg config.Lookup) (llm.Backend, error) {
		return ollama.New(get(cfg, "ai.local.base_url"), get(cfg, "ai.local.model"))
	},
	"mock": func(cfg config.Lookup) (llm.Backend, error) {
		return mock.New(), nil
	},
}

// Names lists the supported backend names.
func Names() []string {
	return []string{"claude", "chatgpt", "gemini", "local", "mock"}
}

// New builds the named backend. An unknown name, a construction failure or
// an unavailable backend falls back to the mock backend with a warning.
func New(ctx context.Context, name string, cfg config.Lookup) llm.Backend {
	name = strings.ToLower(strings.TrimSpace(name))
	build, ok := constructors[name]
	if !ok {
		log.Warn().Str("provider", name).Msg("unknown AI provider, using mock backend")
		return mock.New()
	}
	b, err := build(cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", name).Msg("AI provider init failed, using mock backend")
		return mock.New()
	}
	if !b.Available(ctx) {
		log.Warn().Str("provider", name).Msg("AI provider unavailable, using mock backend")
		return mock.New()
	}
	log.Info().Str("provider", b.Name()).Msg("AI provider ready")
	return b
}

func get(cfg config.Lookup, key string) string {
	if cfg == nil {
		return ""
	}
	v, _ := cfg.Get(key)
	return v
}

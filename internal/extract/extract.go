// Package extract recovers tool calls from free-form AI text. Backends without
// native tool use answer with fenced JSON directives such as
//
//	```json
//	{"action": "tool_call", "tool": "file_list", "parameters": {"dir_path": "/tmp"}}
//	```
//
// Extract finds every fenced block and decodes the directives it carries.
package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/llm"
)

type directive struct {
	Action     string            `json:"action"`
	Tool       string            `json:"tool"`
	Parameters map[string]any    `json:"parameters"`
	Arguments  map[string]any    `json:"arguments"`
	Steps      []json.RawMessage `json:"steps"`
}

// fenced matches a fenced block anywhere in the text: the fence may follow
// prose, the body may share a line with either fence, and the block may sit
// on a single line. Group 1 is the language label, group 2 the body.
var fenced = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)(.*?)```")

// blocks returns the bodies of ```json and unlabeled fenced blocks. Blocks
// labeled with another language are skipped, and an unterminated block is
// ignored.
func blocks(text string) []string {
	var out []string
	for _, m := range fenced.FindAllStringSubmatch(text, -1) {
		label := strings.ToLower(m[1])
		if label != "" && label != "json" {
			continue
		}
		out = append(out, strings.TrimSpace(m[2]))
	}
	return out
}

// Extract returns the tool calls in text, in order of appearance. Blocks that
// are not valid JSON or name no tool are skipped. Text without fenced blocks
// yields nothing.
func Extract(text string) []llm.ToolCall {
	var calls []llm.ToolCall
	for _, body := range blocks(text) {
		if body == "" {
			continue
		}
		calls = append(calls, decodeBlock([]byte(body))...)
	}
	return calls
}

func decodeBlock(body []byte) []llm.ToolCall {
	if bytes.HasPrefix(body, []byte("[")) {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			log.Debug().Err(err).Msg("skipping malformed directive block")
			return nil
		}
		var calls []llm.ToolCall
		for _, item := range items {
			calls = append(calls, decodeDirective(item)...)
		}
		return calls
	}
	return decodeDirective(body)
}

func decodeDirective(raw json.RawMessage) []llm.ToolCall {
	var d directive
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Debug().Err(err).Msg("skipping malformed directive block")
		return nil
	}
	switch d.Action {
	case "multi_step":
		var calls []llm.ToolCall
		for _, step := range d.Steps {
			calls = append(calls, decodeDirective(step)...)
		}
		return calls
	case "", "tool_call":
		if d.Tool == "" {
			return nil
		}
		args := d.Parameters
		if args == nil {
			args = d.Arguments
		}
		if args == nil {
			args = map[string]any{}
		}
		return []llm.ToolCall{{Name: d.Tool, Arguments: args}}
	default:
		// reply and unknown actions carry no calls
		return nil
	}
}

// Message returns the "message" of a reply directive, if text holds one. It
// lets callers show the intended answer instead of the raw JSON.
func Message(text string) (string, bool) {
	for _, body := range blocks(text) {
		var d struct {
			Action  string `json:"action"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(body), &d); err != nil {
			continue
		}
		if d.Action == "reply" && d.Message != "" {
			return d.Message, true
		}
	}
	return "", false
}

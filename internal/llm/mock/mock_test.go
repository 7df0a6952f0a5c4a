package mock_test

import (
	"context"
	"strings"
	"testing"

	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/llm/mock"
)

func user(s string) []llm.Turn {
	return []llm.Turn{{Role: llm.RoleUser, Content: s}}
}

func TestPatternReplies(t *testing.T) {
	b := mock.New()
	ctx := context.Background()

	tests := []struct {
		input string
		want  string
	}{
		{"please create a new project for my board", `"vivado_create_project"`},
		{"hello", `"action": "reply"`},
		{"Tool results:\n{\"tool\":\"vivado_create_project\"}", `"action": "reply"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			reply := b.Chat(ctx, user(tt.input), "", nil)
			if !strings.Contains(reply.Text, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", reply.Text, tt.want)
			}
		})
	}
}

func TestScriptRepeatsLast(t *testing.T) {
	b := mock.Script(llm.Reply{Text: "one"}, llm.Reply{Text: "two"})
	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, b.Chat(ctx, user("x"), "sys", nil).Text)
	}
	if strings.Join(got, ",") != "one,two,two" {
		t.Errorf("replies = %v, want one,two,two", got)
	}
	calls := b.Calls()
	if len(calls) != 3 || calls[0].SystemPrompt != "sys" {
		t.Errorf("calls = %+v", calls)
	}
}

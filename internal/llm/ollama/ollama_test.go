package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/llm/ollama"
)

func TestChat(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hello from llama"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	b, err := ollama.New(srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !b.Available(context.Background()) {
		t.Fatal("backend should be available")
	}
	reply := b.Chat(context.Background(), []llm.Turn{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "again"},
	}, "system prompt", nil)

	if reply.Text != "hello from llama" {
		t.Errorf("Text = %q", reply.Text)
	}
	if gotReq.Model != ollama.DefaultModel {
		t.Errorf("model = %q, want %q", gotReq.Model, ollama.DefaultModel)
	}
	if len(gotReq.Messages) != 4 || gotReq.Messages[0].Role != "system" || gotReq.Messages[2].Role != "assistant" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestUnreachable(t *testing.T) {
	b, err := ollama.New("http://127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Available(context.Background()) {
		t.Error("unreachable server should be unavailable")
	}
	reply := b.Chat(context.Background(), []llm.Turn{{Role: llm.RoleUser, Content: "hi"}}, "", nil)
	if !strings.HasPrefix(reply.Text, "API error:") {
		t.Errorf("Text = %q, want API error text", reply.Text)
	}
}

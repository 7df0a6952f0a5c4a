package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/llm/openai"
)

var fileList = catalog.Spec{
	Name:        "file_list",
	Description: "List directory entries",
	Category:    catalog.CategoryFile,
	Parameters: map[string]catalog.ParamSpec{
		"dir_path": {Type: catalog.TypeString, Required: true},
	},
}

func TestChatNativeToolCalls(t *testing.T) {
	var gotReq struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Tools []struct {
			Type     string `json:"type"`
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "Listing.",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "file_list", "arguments": "{\"dir_path\":\"/tmp\"}"}
					}]
				}
			}]
		}`))
	}))
	defer srv.Close()

	b := openai.New("sk-test", "", srv.URL+"/v1")
	reply := b.Chat(context.Background(),
		[]llm.Turn{{Role: llm.RoleUser, Content: "what is in /tmp?"}},
		"you are arixa", []catalog.Spec{fileList})

	if reply.Text != "Listing." {
		t.Errorf("Text = %q", reply.Text)
	}
	if len(reply.ToolCalls) != 1 || reply.ToolCalls[0].Name != "file_list" {
		t.Fatalf("ToolCalls = %+v", reply.ToolCalls)
	}
	if reply.ToolCalls[0].Arguments["dir_path"] != "/tmp" {
		t.Errorf("Arguments = %v", reply.ToolCalls[0].Arguments)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v, want system + user", gotReq.Messages)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Function.Name != "file_list" {
		t.Errorf("tools = %+v", gotReq.Tools)
	}
}

func TestChatErrorBecomesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	b := openai.New("sk-bad", "", srv.URL+"/v1")
	reply := b.Chat(context.Background(), []llm.Turn{{Role: llm.RoleUser, Content: "hi"}}, "", nil)
	if !strings.HasPrefix(reply.Text, "API error:") {
		t.Errorf("Text = %q, want API error text", reply.Text)
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want none", reply.ToolCalls)
	}
}

func TestAvailable(t *testing.T) {
	if openai.New("", "", "").Available(context.Background()) {
		t.Error("backend without api key should be unavailable")
	}
	if !openai.New("sk", "", "").Available(context.Background()) {
		t.Error("backend with api key should be available")
	}
}

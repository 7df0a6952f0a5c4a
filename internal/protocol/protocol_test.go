package protocol_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/session"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	c.MustRegister(
		catalog.Descriptor{
			Name:     "echo",
			Category: catalog.CategorySystem,
			Params:   []catalog.Param{{Name: "text", Type: catalog.TypeString, Default: "hi"}},
			Handler: catalog.Func(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				return map[string]any{"echo": args["text"]}, nil
			}),
		},
		catalog.Descriptor{
			Name:     "slow_echo",
			Category: catalog.CategorySystem,
			Handler: catalog.Async(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				time.Sleep(10 * time.Millisecond)
				return map[string]any{"done": true}, nil
			}),
		},
		catalog.Descriptor{
			Name:     "broken",
			Category: catalog.CategorySystem,
			Handler: catalog.Func(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				return nil, errors.New("disk on fire")
			}),
		},
		catalog.Descriptor{
			Name:     "panics",
			Category: catalog.CategorySystem,
			Handler: catalog.Func(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				panic("unexpected state")
			}),
		},
		catalog.Descriptor{Name: "unwired", Category: catalog.CategorySystem},
	)
	return c
}

// ─── Dispatcher ───────────────────────────────────────────────────────────────

func TestCallUnknownTool(t *testing.T) {
	d := protocol.NewDispatcher(newCatalog(t))
	resp := d.Invoke(context.Background(), session.New(""), "nonexistent_tool", nil)
	if resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, protocol.CodeMethodNotFound)
	}
	if !strings.Contains(resp.Error.Message, "nonexistent_tool") {
		t.Errorf("message %q should name the tool", resp.Error.Message)
	}
}

func TestCallHandlerFault(t *testing.T) {
	d := protocol.NewDispatcher(newCatalog(t))
	tests := []struct {
		tool    string
		message string
	}{
		{"broken", "disk on fire"},
		{"panics", "unexpected state"},
		{"unwired", "no handler"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			resp := d.Invoke(context.Background(), session.New(""), tt.tool, nil)
			if resp.Error == nil {
				t.Fatal("expected error response")
			}
			if resp.Error.Code != protocol.CodeInternalError {
				t.Errorf("code = %d, want %d", resp.Error.Code, protocol.CodeInternalError)
			}
			if !strings.Contains(resp.Error.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", resp.Error.Message, tt.message)
			}
		})
	}
}

func TestCallSyncAndAsync(t *testing.T) {
	d := protocol.NewDispatcher(newCatalog(t))
	ctx := context.Background()

	resp := d.Invoke(ctx, session.New(""), "echo", nil)
	if !resp.OK() {
		t.Fatalf("echo failed: %v", resp.Error)
	}
	if got := resp.Payload()["echo"]; got != "hi" {
		t.Errorf("echo = %v, want default hi", got)
	}

	resp = d.Invoke(ctx, session.New(""), "slow_echo", nil)
	if !resp.OK() {
		t.Fatalf("slow_echo failed: %v", resp.Error)
	}
	if got := resp.Payload()["done"]; got != true {
		t.Errorf("done = %v, want true", got)
	}
}

func TestHandleEnvelope(t *testing.T) {
	d := protocol.NewDispatcher(newCatalog(t))
	ctx := context.Background()
	sess := session.New("")

	tests := []struct {
		name string
		req  protocol.Request
		code int
	}{
		{"unknown method", protocol.Request{ID: 1, Method: "tools/delete"}, protocol.CodeMethodNotFound},
		{"missing params", protocol.Request{ID: 2, Method: protocol.MethodCallTool}, protocol.CodeInvalidParams},
		{"malformed params", protocol.Request{ID: 3, Method: protocol.MethodCallTool, Params: json.RawMessage(`[1,2]`)}, protocol.CodeInvalidParams},
		{"ok", protocol.Request{ID: 4, Method: protocol.MethodCallTool, Params: json.RawMessage(`{"name":"echo","arguments":{"text":"x"}}`)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Handle(ctx, sess, tt.req)
			if resp.ID != tt.req.ID {
				t.Errorf("ID = %v, want %v", resp.ID, tt.req.ID)
			}
			if tt.code == 0 {
				if resp.Error != nil {
					t.Errorf("unexpected error %v", resp.Error)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("error = %v, want code %d", resp.Error, tt.code)
			}
		})
	}
}

func TestListTools(t *testing.T) {
	d := protocol.NewDispatcher(newCatalog(t))
	resp := d.Handle(context.Background(), nil, protocol.Request{ID: "a", Method: protocol.MethodListTools})
	result, _ := resp.Result.(map[string]any)
	specs, _ := result["tools"].([]catalog.Spec)
	if len(specs) != 5 {
		t.Fatalf("tools = %d, want 5", len(specs))
	}
	if specs[0].Name != "echo" {
		t.Errorf("first tool = %q, want echo", specs[0].Name)
	}
}

func TestObserver(t *testing.T) {
	var calls atomic.Int32
	var failed atomic.Int32
	d := protocol.NewDispatcher(newCatalog(t), protocol.WithObserver(func(ctx context.Context, ev protocol.Event) {
		calls.Add(1)
		if !ev.Success {
			failed.Add(1)
		}
	}))
	d.Invoke(context.Background(), session.New(""), "echo", nil)
	d.Invoke(context.Background(), session.New(""), "broken", nil)
	if calls.Load() != 2 || failed.Load() != 1 {
		t.Errorf("observer saw %d calls, %d failed; want 2, 1", calls.Load(), failed.Load())
	}
}

// ─── Stream ───────────────────────────────────────────────────────────────────

func startStream(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := protocol.NewStreamServer(protocol.NewDispatcher(newCatalog(t)), t.TempDir())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	addr := startStream(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	payload := "this is not json\n" +
		`{"id":7,"method":"tools/call","params":{"name":"echo","arguments":{"text":"pong"}}}` + "\n"
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp struct {
		ID     float64        `json:"id"`
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if resp.ID != 7 {
		t.Errorf("first response id = %v, want 7 (malformed line must produce no response)", resp.ID)
	}
	if resp.Result["echo"] != "pong" {
		t.Errorf("echo = %v, want pong", resp.Result["echo"])
	}
}

func TestClientRoundTrip(t *testing.T) {
	addr := startStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := protocol.Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	specs, err := c.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(specs) != 5 {
		t.Errorf("ListTools = %d tools, want 5", len(specs))
	}

	resp := c.Invoke(ctx, nil, "slow_echo", nil)
	if !resp.OK() {
		t.Fatalf("Invoke: %v", resp.Error)
	}
	if resp.Payload()["done"] != true {
		t.Errorf("payload = %v", resp.Payload())
	}

	resp = c.Invoke(ctx, nil, "nonexistent_tool", nil)
	if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("error = %v, want method not found", resp.Error)
	}
}

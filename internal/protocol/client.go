package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/session"
)

// Client talks to a StreamServer. Requests on one client are serialized; the
// server side holds a single session for the connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	enc  *json.Encoder
}

// Dial connects to a stream server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), enc: json.NewEncoder(conn)}, nil
}

// Do sends req and waits for its response line.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
		defer c.conn.SetDeadline(time.Time{})
	}
	if err := c.enc.Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Invoke implements Invoker. The session argument is ignored: the server
// keeps one session per connection.
func (c *Client) Invoke(ctx context.Context, _ *session.Context, name string, args map[string]any) Response {
	id := uuid.NewString()
	req, err := NewCallRequest(id, name, args)
	if err != nil {
		return errorResponse(id, CodeInvalidParams, err.Error())
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return errorResponse(id, CodeInternalError, err.Error())
	}
	return resp
}

// ListTools fetches the remote catalog.
func (c *Client) ListTools(ctx context.Context) ([]catalog.Spec, error) {
	resp, err := c.Do(ctx, Request{ID: uuid.NewString(), Method: MethodListTools})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []catalog.Spec `json:"tools"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}
	return out.Tools, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

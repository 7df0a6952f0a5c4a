// Package protocol carries tool invocations between the orchestration loop and
// the catalog. Requests and responses use a JSON-RPC style envelope, and the
// same envelope is used in-process, over the line stream and over HTTP.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Methods understood by the dispatcher.
const (
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
)

// Error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is one invocation. ID is echoed back untouched and may be a string,
// a number or absent.
type Request struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	ID     any    `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error is the error member of a Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// CallParams are the params of a tools/call request.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewCallRequest builds a tools/call request.
func NewCallRequest(id any, name string, args map[string]any) (Request, error) {
	raw, err := json.Marshal(CallParams{Name: name, Arguments: args})
	if err != nil {
		return Request{}, fmt.Errorf("encode call params: %w", err)
	}
	return Request{ID: id, Method: MethodCallTool, Params: raw}, nil
}

func errorResponse(id any, code int, msg string) Response {
	return Response{ID: id, Error: &Error{Code: code, Message: msg}}
}

// OK reports whether the response carries a result.
func (r Response) OK() bool {
	return r.Error == nil
}

// Payload returns the result as a JSON object, decoding it if it arrived as a
// generic value over the wire.
func (r Response) Payload() map[string]any {
	switch v := r.Result.(type) {
	case map[string]any:
		return v
	case nil:
		return nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return map[string]any{"result": v}
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return map[string]any{"result": v}
		}
		return m
	}
}

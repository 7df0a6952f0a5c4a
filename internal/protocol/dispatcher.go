package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/session"
)

// Invoker runs one tool by name. The in-process Dispatcher and the remote
// Client both implement it.
type Invoker interface {
	Invoke(ctx context.Context, sess *session.Context, name string, args map[string]any) Response
}

// Event describes a finished tools/call, handed to observers.
type Event struct {
	RequestID string
	SessionID string
	Tool      string
	Arguments map[string]any
	Success   bool
	Error     string
	Duration  time.Duration
}

// Observer is notified after every tools/call.
type Observer func(ctx context.Context, ev Event)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver adds an observer. Observers run synchronously after the call.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observers = append(d.observers, o)
	}
}

// Dispatcher routes requests to catalog handlers. It holds no per-call state,
// so concurrent calls (including to the same tool) run independently.
type Dispatcher struct {
	catalog   *catalog.Catalog
	observers []Observer
}

// NewDispatcher creates a dispatcher over cat.
func NewDispatcher(cat *catalog.Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{catalog: cat}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle answers one request.
func (d *Dispatcher) Handle(ctx context.Context, sess *session.Context, req Request) Response {
	switch req.Method {
	case MethodListTools:
		return Response{ID: req.ID, Result: map[string]any{"tools": d.catalog.Specs()}}

	case MethodCallTool:
		var p CallParams
		if len(req.Params) == 0 {
			return errorResponse(req.ID, CodeInvalidParams, "missing params")
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
		if p.Name == "" {
			return errorResponse(req.ID, CodeInvalidParams, "missing tool name")
		}
		resp := d.call(ctx, sess, eventID(req.ID), p.Name, p.Arguments)
		resp.ID = req.ID
		return resp

	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// eventID names a call for observers. Requests without an id still get a
// unique one, though the response keeps the id absent.
func eventID(id any) string {
	if id == nil {
		return uuid.NewString()
	}
	return fmt.Sprint(id)
}

// Invoke calls a tool directly, with a freshly generated request id.
func (d *Dispatcher) Invoke(ctx context.Context, sess *session.Context, name string, args map[string]any) Response {
	id := uuid.NewString()
	resp := d.call(ctx, sess, id, name, args)
	resp.ID = id
	return resp
}

func (d *Dispatcher) call(ctx context.Context, sess *session.Context, reqID, name string, args map[string]any) Response {
	start := time.Now()

	desc, err := d.catalog.Get(name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			log.Warn().Str("tool", name).Str("session", sess.ID()).Msg("tool not found")
			return errorResponse(nil, CodeMethodNotFound, fmt.Sprintf("tool not found: %s", name))
		}
		return errorResponse(nil, CodeInternalError, err.Error())
	}

	args = desc.ApplyDefaults(args)
	payload, err := run(ctx, sess, desc, args)
	elapsed := time.Since(start)

	ev := Event{
		RequestID: reqID,
		SessionID: sess.ID(),
		Tool:      name,
		Arguments: args,
		Success:   err == nil,
		Duration:  elapsed,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	for _, o := range d.observers {
		o(ctx, ev)
	}

	if err != nil {
		log.Error().Err(err).Str("tool", name).Dur("duration", elapsed).Msg("tool call failed")
		return errorResponse(nil, CodeInternalError, err.Error())
	}
	log.Info().Str("tool", name).Str("session", sess.ID()).Dur("duration", elapsed).Msg("tool call")
	return Response{Result: payload}
}

// run awaits the handler's task. Sync and async handlers look the same here.
func run(ctx context.Context, sess *session.Context, desc catalog.Descriptor, args map[string]any) (payload map[string]any, err error) {
	if desc.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", desc.Name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	payload, err = desc.Handler.Start(ctx, sess, args).Wait()
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

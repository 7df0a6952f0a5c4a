package catalog

import (
	"context"
	"fmt"

	"github.com/arixa/arixa/internal/session"
)

// Handler performs a tool's side effect. Start begins the work and returns a
// Task; callers always Wait on the task, whether the handler ran inline or on
// its own goroutine.
type Handler interface {
	Start(ctx context.Context, sess *session.Context, args map[string]any) Task
}

// Task is the pending result of a handler call.
type Task interface {
	Wait() (map[string]any, error)
}

// Func is a synchronous handler. It runs to completion inside Start.
type Func func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error)

// Start runs f and returns an already completed Task.
func (f Func) Start(ctx context.Context, sess *session.Context, args map[string]any) Task {
	payload, err := f(ctx, sess, args)
	return completed{payload: payload, err: err}
}

// Async is a handler that runs on its own goroutine. Start returns immediately.
type Async func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error)

// Start launches f and returns a Task that completes when f returns. A panic
// inside f is delivered as the task's error.
func (f Async) Start(ctx context.Context, sess *session.Context, args map[string]any) Task {
	t := &pending{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if rec := recover(); rec != nil {
				t.err = fmt.Errorf("handler panic: %v", rec)
			}
		}()
		t.payload, t.err = f(ctx, sess, args)
	}()
	return t
}

type completed struct {
	payload map[string]any
	err     error
}

func (c completed) Wait() (map[string]any, error) {
	return c.payload, c.err
}

type pending struct {
	done    chan struct{}
	payload map[string]any
	err     error
}

func (p *pending) Wait() (map[string]any, error) {
	<-p.done
	return p.payload, p.err
}

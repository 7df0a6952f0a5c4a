// Package session holds per-conversation state that tool handlers read and
// mutate. Each conversation (and each stream connection) owns one Context, so
// the "current project" set by one handler is never visible to another
// conversation.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Context is passed into every handler call.
type Context struct {
	id         string
	workingDir string

	mu             sync.RWMutex
	currentProject string
	values         map[string]string
}

// New creates a Context with a random id and the given default working directory.
func New(workingDir string) *Context {
	return NewWithID(uuid.NewString(), workingDir)
}

// NewWithID creates a Context with an explicit id, e.g. one supplied by an HTTP client.
func NewWithID(id, workingDir string) *Context {
	return &Context{
		id:         id,
		workingDir: workingDir,
		values:     make(map[string]string),
	}
}

// ID returns the session identifier.
func (c *Context) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// WorkingDir returns the default directory for commands and relative paths.
func (c *Context) WorkingDir() string {
	if c == nil {
		return ""
	}
	return c.workingDir
}

// CurrentProject returns the project file focused by this session, if any.
func (c *Context) CurrentProject() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentProject
}

// SetCurrentProject focuses the session on a project file.
func (c *Context) SetCurrentProject(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentProject = path
}

// Value returns a handler-defined string value.
func (c *Context) Value(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// SetValue stores a handler-defined string value.
func (c *Context) SetValue(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Package catalog holds the tools exposed to the AI: their descriptors,
// parameter schemas and handlers. The catalog is built once at startup.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned by Get for an unregistered name.
	ErrNotFound = errors.New("tool not found")
	// ErrInvalidSchema is returned by Register for a malformed descriptor.
	ErrInvalidSchema = errors.New("invalid tool schema")
)

// Catalog is a name-keyed, order-preserving set of descriptors.
type Catalog struct {
	mu      sync.RWMutex
	tools   map[string]Descriptor
	order   []string
	version uint64
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{tools: make(map[string]Descriptor)}
}

// Register inserts d, replacing any earlier descriptor with the same name.
// A replaced tool keeps its original position in List.
func (c *Catalog) Register(d Descriptor) error {
	if err := validate(d); err != nil {
		return err
	}
	d = d.clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[d.Name]; !exists {
		c.order = append(c.order, d.Name)
	} else {
		log.Debug().Str("tool", d.Name).Msg("tool re-registered, replacing previous descriptor")
	}
	c.tools[d.Name] = d
	c.version++
	return nil
}

// MustRegister registers every descriptor and panics on the first invalid one.
// It is meant for the built-in tool set, where a bad schema is a programming error.
func (c *Catalog) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := c.Register(d); err != nil {
			panic(fmt.Sprintf("catalog: %v", err))
		}
	}
}

// Get returns the descriptor registered under name.
func (c *Catalog) Get(name string) (Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.tools[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return d, nil
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Descriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tools[name])
	}
	return out
}

// Specs returns the serialized form of List.
func (c *Catalog) Specs() []Spec {
	ds := c.List()
	out := make([]Spec, len(ds))
	for i, d := range ds {
		out[i] = d.Spec()
	}
	return out
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Version increments on every successful registration.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

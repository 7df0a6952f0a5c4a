package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// Category groups tools in listings and in the system prompt.
type Category string

const (
	CategoryVivado         Category = "vivado"
	CategoryFile           Category = "file"
	CategorySystem         Category = "system"
	CategoryProject        Category = "project"
	CategorySimulation     Category = "simulation"
	CategorySynthesis      Category = "synthesis"
	CategoryImplementation Category = "implementation"
	CategoryBitstream      Category = "bitstream"
)

var knownCategories = map[Category]bool{
	CategoryVivado:         true,
	CategoryFile:           true,
	CategorySystem:         true,
	CategoryProject:        true,
	CategorySimulation:     true,
	CategorySynthesis:      true,
	CategoryImplementation: true,
	CategoryBitstream:      true,
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	return knownCategories[c]
}

// ParamType is the type tag of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param describes one named tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// Descriptor is a registered tool.
type Descriptor struct {
	Name        string
	Description string
	Category    Category
	Params      []Param
	Handler     Handler
}

// ParamSpec is the serialized form of a Param.
type ParamSpec struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
}

// Spec is the serialized form of a Descriptor, returned by tools/list.
type Spec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    Category             `json:"category"`
	Parameters  map[string]ParamSpec `json:"parameters"`
}

// Spec renders d without its handler.
func (d Descriptor) Spec() Spec {
	params := make(map[string]ParamSpec, len(d.Params))
	for _, p := range d.Params {
		params[p.Name] = ParamSpec{
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required,
			Default:     p.Default,
		}
	}
	return Spec{
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Parameters:  params,
	}
}

// JSONSchema renders the parameters as a JSON-Schema object, the shape AI
// backends expect for native tool definitions.
func (s Spec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	required := make([]string, 0)
	for name, p := range s.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Type == TypeArray {
			prop["items"] = map[string]any{"type": "string"}
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	slices.Sort(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// FromSpec rebuilds a handler-less descriptor from its serialized form, e.g.
// to describe a remote catalog. Parameters come back sorted by name since the
// serialized form does not keep their order.
func FromSpec(s Spec) Descriptor {
	names := make([]string, 0, len(s.Parameters))
	for name := range s.Parameters {
		names = append(names, name)
	}
	slices.Sort(names)
	params := make([]Param, 0, len(names))
	for _, name := range names {
		p := s.Parameters[name]
		params = append(params, Param{
			Name:        name,
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required,
			Default:     p.Default,
		})
	}
	return Descriptor{
		Name:        s.Name,
		Description: s.Description,
		Category:    s.Category,
		Params:      params,
	}
}

// ApplyDefaults returns a copy of args with absent parameters filled from
// their declared defaults.
func (d Descriptor) ApplyDefaults(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(d.Params))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range d.Params {
		if p.Default == nil {
			continue
		}
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = p.Default
		}
	}
	return out
}

func (d Descriptor) clone() Descriptor {
	params := make([]Param, len(d.Params))
	copy(params, d.Params)
	d.Params = params
	return d
}

func validate(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: tool name is empty", ErrInvalidSchema)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: tool %s has unknown category %q", ErrInvalidSchema, d.Name, d.Category)
	}
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: tool %s has a parameter without a name", ErrInvalidSchema, d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: tool %s declares parameter %s twice", ErrInvalidSchema, d.Name, p.Name)
		}
		seen[p.Name] = true
		if !defaultMatches(p.Type, p.Default) {
			if !validType(p.Type) {
				return fmt.Errorf("%w: tool %s parameter %s has unknown type %q", ErrInvalidSchema, d.Name, p.Name, p.Type)
			}
			return fmt.Errorf("%w: tool %s parameter %s default %v is not a %s", ErrInvalidSchema, d.Name, p.Name, p.Default, p.Type)
		}
	}
	return nil
}

func validType(t ParamType) bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

func defaultMatches(t ParamType, v any) bool {
	if !validType(t) {
		return false
	}
	if v == nil {
		return true
	}
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

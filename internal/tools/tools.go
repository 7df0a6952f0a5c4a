// Package tools implements the built-in tool set: Vivado project flow, file
// operations and local process execution.
package tools

import (
	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/executor"
	"github.com/arixa/arixa/internal/security"
)

// Deps are the collaborators the built-in handlers need.
type Deps struct {
	Exec   *executor.Executor
	Filter *security.CommandFilter
}

// Register adds the built-in tools to cat in a fixed order: Vivado, file, system.
func Register(cat *catalog.Catalog, deps Deps) error {
	if deps.Filter == nil {
		deps.Filter = security.NewCommandFilter()
	}
	groups := [][]catalog.Descriptor{
		vivadoTools(deps.Exec),
		fileTools(),
		systemTools(deps.Exec, deps.Filter),
	}
	for _, g := range groups {
		for _, d := range g {
			if err := cat.Register(d); err != nil {
				return err
			}
		}
	}
	return nil
}

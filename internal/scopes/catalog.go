package scopes

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Scopes lists the scopes with built-in rule types.
var Scopes = []types.Scope{
	types.ScopeCart,
	types.ScopeCustomer,
	types.ScopeProduct,
	types.ScopeProductAttribute,
}

// Registries are the descriptor and handler registries of one scope.
type Registries struct {
	Descriptors *rules.DescriptorRegistry
	Handlers    *rules.HandlerRegistry
}

// Catalog holds the registries of every built-in scope. It is built once at
// startup and read-only afterwards.
type Catalog struct {
	scopes map[types.Scope]Registries
}

// NewCatalog registers the built-in rule types. attributes become Variant
// rule types of the product attribute scope.
func NewCatalog(attributes ...Attribute) (*Catalog, error) {
	plugins := map[types.Scope]plugin{
		types.ScopeCart:             cartPlugin(),
		types.ScopeCustomer:         customerPlugin(),
		types.ScopeProduct:          productPlugin(),
		types.ScopeProductAttribute: attributePlugin(attributes),
	}

	c := &Catalog{scopes: make(map[types.Scope]Registries, len(plugins))}
	for scope, p := range plugins {
		descriptors, err := rules.NewDescriptorRegistry(scope, p)
		if err != nil {
			return nil, fmt.Errorf("register %s descriptors: %w", scope, err)
		}
		handlers := rules.NewHandlerRegistry(scope)
		if err := p.register(handlers); err != nil {
			return nil, fmt.Errorf("register %s handlers: %w", scope, err)
		}
		c.scopes[scope] = Registries{Descriptors: descriptors, Handlers: handlers}
	}
	return c, nil
}

// Lookup returns the registries of scope.
func (c *Catalog) Lookup(scope types.Scope) (Registries, error) {
	r, ok := c.scopes[scope]
	if !ok {
		return Registries{}, fmt.Errorf("%w: no rule types registered for scope %s", types.ErrInvalidScope, scope)
	}
	return r, nil
}

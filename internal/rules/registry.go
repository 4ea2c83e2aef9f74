package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

// DescriptorProvider supplies the rule descriptors a plugin contributes.
type DescriptorProvider interface {
	RuleDescriptors() []*RuleDescriptor
}

// DescriptorProviderFunc adapts a function to DescriptorProvider.
type DescriptorProviderFunc func() []*RuleDescriptor

// RuleDescriptors implements DescriptorProvider.
func (f DescriptorProviderFunc) RuleDescriptors() []*RuleDescriptor {
	return f()
}

// DescriptorRegistry holds the descriptors of one scope, keyed by
// case-insensitive name. It is populated once by NewDescriptorRegistry and is
// read-only afterwards, so lookups need no locking.
type DescriptorRegistry struct {
	scope  types.Scope
	byName map[string]*RuleDescriptor
	all    []*RuleDescriptor
}

// NewDescriptorRegistry collects the descriptors of all providers. Duplicate
// names and descriptors of a different scope are rejected.
func NewDescriptorRegistry(scope types.Scope, providers ...DescriptorProvider) (*DescriptorRegistry, error) {
	r := &DescriptorRegistry{
		scope:  scope,
		byName: make(map[string]*RuleDescriptor),
	}
	for _, p := range providers {
		for _, d := range p.RuleDescriptors() {
			if err := r.register(d); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *DescriptorRegistry) register(d *RuleDescriptor) error {
	if d == nil || d.Name() == "" {
		return fmt.Errorf("descriptor without name in scope %s", r.scope)
	}
	if d.Scope() != r.scope {
		return fmt.Errorf("%w: descriptor %q has scope %s, registry %s", types.ErrScopeMismatch, d.Name(), d.Scope(), r.scope)
	}
	key := strings.ToLower(d.Name())
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("%w: %q", types.ErrDuplicateDescriptor, d.Name())
	}
	r.byName[key] = d
	r.all = append(r.all, d)
	return nil
}

// Find returns the descriptor registered under name, or InvalidRuleDescriptor.
func (r *DescriptorRegistry) Find(name string) *RuleDescriptor {
	if d, ok := r.byName[strings.ToLower(name)]; ok {
		return d
	}
	return InvalidRuleDescriptor
}

// Scope returns the scope all descriptors belong to.
func (r *DescriptorRegistry) Scope() types.Scope {
	return r.scope
}

// Descriptors returns the descriptors in registration order.
func (r *DescriptorRegistry) Descriptors() []*RuleDescriptor {
	out := make([]*RuleDescriptor, len(r.all))
	copy(out, r.all)
	return out
}

// Len returns the number of registered descriptors.
func (r *DescriptorRegistry) Len() int {
	return len(r.all)
}

package scopes

import (
	"github.com/solatis/rulekeeper/internal/rules"
)

// ruleType pairs a descriptor with the handler that evaluates it.
type ruleType struct {
	descriptor *rules.RuleDescriptor
	handler    rules.Handler
}

// plugin is the set of rule types one scope contributes.
type plugin []ruleType

// RuleDescriptors implements rules.DescriptorProvider.
func (p plugin) RuleDescriptors() []*rules.RuleDescriptor {
	out := make([]*rules.RuleDescriptor, len(p))
	for i, rt := range p {
		out[i] = rt.descriptor
	}
	return out
}

func (p plugin) register(reg *rules.HandlerRegistry) error {
	for _, rt := range p {
		if err := reg.Register(rt.descriptor.Name(), rt.handler); err != nil {
			return err
		}
	}
	return nil
}

func withPrecision(places int32) rules.DescriptorOption {
	return rules.WithMetadata(rules.NewMetadata().Precision(places).Build())
}

// moneyPrecision is the default rounding of aggregated amounts.
const moneyPrecision = 2

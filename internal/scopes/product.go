package scopes

import (
	"context"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Product rule types.
const (
	RuleProductID    = "ProductID"
	RuleCategoryIDs  = "CategoryIDs"
	RulePrice        = "Price"
	RuleManufacturer = "Manufacturer"
	RuleSku          = "Sku"
	RuleWeight       = "Weight"
)

type productHandler func(ctx context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error)

func productRule(name string, kind rules.ValueKind, fn productHandler, opts ...rules.DescriptorOption) ruleType {
	return ruleType{
		descriptor: rules.NewRuleDescriptor(name, types.ScopeProduct, kind, opts...),
		handler:    rules.Typed[*ProductContext](fn),
	}
}

func productPlugin() plugin {
	return plugin{
		productRule(RuleProductID, rules.KindIntArray, func(_ context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64(leaf, rc.ProductID)
		}),
		productRule(RuleCategoryIDs, rules.KindIntArray, func(_ context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64s(leaf, rc.CategoryIDs)
		}, rules.ComparingSequences()),
		productRule(RulePrice, rules.KindDecimal, func(_ context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchDecimal(leaf, rc.Price)
		}),
		productRule(RuleManufacturer, rules.KindIntArray, func(_ context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64(leaf, rc.ManufacturerID)
		}),
		productRule(RuleSku, rules.KindString, func(_ context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchString(leaf, rc.Sku)
		}),
		productRule(RuleWeight, rules.KindFloat, func(_ context.Context, rc *ProductContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchFloat64(leaf, rc.Weight)
		}),
	}
}

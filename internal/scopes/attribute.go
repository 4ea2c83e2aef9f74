package scopes

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Product attribute rule types.
 *
 * Variant rule types are generated, one per product attribute, named
 * "Variant<attribute id>". Their descriptor carries the attribute id as
 * ParentId metadata; one shared handler reads it back and matches the values
 * selected for that attribute. A missing or zero ParentId never matches.
 * Multi-select attributes compare the whole selection against the rule list
 * (Contains, IsEqualTo, AllIn...); single-select attributes test the one
 * selected value for membership. PriceAdjustment sums the adjustments of all
 * selected values, rounded to the Precision metadata.
 */

// RulePriceAdjustment is the aggregated price adjustment of the selected values.
const RulePriceAdjustment = "PriceAdjustment"

// Attribute identifies a product attribute that gets a Variant rule type.
type Attribute struct {
	ID          int64
	Name        string
	MultiSelect bool
}

// VariantRuleType returns the rule type name of an attribute.
func VariantRuleType(attributeID int64) string {
	return fmt.Sprintf("Variant%d", attributeID)
}

// AttributeDescriptors returns the Variant descriptors of attributes.
func AttributeDescriptors(attributes []Attribute) []*rules.RuleDescriptor {
	return variantRules(attributes).RuleDescriptors()
}

func attributePlugin(attributes []Attribute) plugin {
	p := plugin{{
		descriptor: rules.NewRuleDescriptor(RulePriceAdjustment, types.ScopeProductAttribute, rules.KindDecimal, withPrecision(moneyPrecision)),
		handler:    rules.Typed(matchPriceAdjustment),
	}}
	return append(p, variantRules(attributes)...)
}

func variantRules(attributes []Attribute) plugin {
	handler := rules.Typed(matchVariant)

	p := make(plugin, 0, len(attributes))
	for _, attr := range attributes {
		meta := rules.NewMetadata().ParentID(attr.ID).Set("Name", attr.Name).Build()
		opts := []rules.DescriptorOption{rules.WithMetadata(meta)}
		if attr.MultiSelect {
			opts = append(opts, rules.ComparingSequences())
		}
		p = append(p, ruleType{
			descriptor: rules.NewRuleDescriptor(VariantRuleType(attr.ID), types.ScopeProductAttribute, rules.KindIntArray, opts...),
			handler:    handler,
		})
	}
	return p
}

func matchVariant(_ context.Context, rc *AttributeContext, leaf *rules.LeafExpression) (bool, error) {
	attributeID, ok := leaf.Descriptor.Metadata().ParentID()
	if !ok || attributeID == 0 {
		return false, nil
	}
	return rules.MatchInt64s(leaf, rc.SelectedValues(attributeID))
}

// PriceAdjustment returns the sum of the adjustments of all selected values.
func (c *AttributeContext) PriceAdjustment() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.Selected {
		total = total.Add(v.PriceAdjustment)
	}
	return total
}

func matchPriceAdjustment(_ context.Context, rc *AttributeContext, leaf *rules.LeafExpression) (bool, error) {
	return rules.MatchDecimal(leaf, roundTo(leaf, rc.PriceAdjustment()))
}

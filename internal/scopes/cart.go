package scopes

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Cart rule types.
const (
	RuleCartTotal           = "CartTotal"
	RuleCartItemCount       = "CartItemCount"
	RuleCartWeight          = "CartWeight"
	RuleProductInCart       = "ProductInCart"
	RuleCustomerRole        = "CustomerRole"
	RuleCurrency            = "Currency"
	RulePlatform            = "Platform"
	RuleDevice              = "Device"
	RuleBrowser             = "Browser"
	RuleBrowserMajorVersion = "BrowserMajorVersion"
	RuleIsMobile            = "IsMobile"
)

type cartHandler func(ctx context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error)

func cartRule(name string, kind rules.ValueKind, fn cartHandler, opts ...rules.DescriptorOption) ruleType {
	return ruleType{
		descriptor: rules.NewRuleDescriptor(name, types.ScopeCart, kind, opts...),
		handler:    rules.Typed[*CartContext](fn),
	}
}

func cartPlugin() plugin {
	return plugin{
		cartRule(RuleCartTotal, rules.KindDecimal, matchCartTotal, withPrecision(moneyPrecision)),
		cartRule(RuleCartItemCount, rules.KindInt, matchCartItemCount),
		cartRule(RuleCartWeight, rules.KindDecimal, matchCartWeight),
		cartRule(RuleProductInCart, rules.KindIntArray, matchProductInCart, rules.ComparingSequences()),
		cartRule(RuleCustomerRole, rules.KindIntArray, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64s(leaf, rc.Customer.RoleIDs)
		}, rules.ComparingSequences()),
		cartRule(RuleCurrency, rules.KindStringArray, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchString(leaf, rc.Currency)
		}),

		// Ambient request properties.
		cartRule(RulePlatform, rules.KindStringArray, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			return matchSignal(leaf, rc.UserAgent.Platform)
		}),
		cartRule(RuleDevice, rules.KindStringArray, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			return matchSignal(leaf, rc.UserAgent.Device)
		}),
		cartRule(RuleBrowser, rules.KindStringArray, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			return matchSignal(leaf, rc.UserAgent.Browser)
		}),
		cartRule(RuleBrowserMajorVersion, rules.KindInt, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			if rc.UserAgent.BrowserMajorVersion <= 0 {
				return false, nil
			}
			return rules.MatchInt64(leaf, rc.UserAgent.BrowserMajorVersion)
		}),
		cartRule(RuleIsMobile, rules.KindBoolean, func(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchBool(leaf, rc.UserAgent.IsMobile)
		}),
	}
}

// matchSignal matches an ambient user agent classification. An unresolved
// (empty) signal never matches.
func matchSignal(leaf *rules.LeafExpression, signal string) (bool, error) {
	if signal == "" {
		return false, nil
	}
	return rules.MatchString(leaf, signal)
}

// Total returns the sum of unit price times quantity over all items.
func (c *CartContext) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

// ItemCount returns the number of units in the cart.
func (c *CartContext) ItemCount() int64 {
	var n int64
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Weight returns the shipping weight of the cart.
func (c *CartContext) Weight() decimal.Decimal {
	weight := decimal.Zero
	for _, item := range c.Items {
		weight = weight.Add(item.Weight.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return weight
}

// ProductIDs returns the distinct products in the cart in ascending order.
func (c *CartContext) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func matchCartTotal(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
	return rules.MatchDecimal(leaf, roundTo(leaf, rc.Total()))
}

func matchCartItemCount(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
	return rules.MatchInt64(leaf, rc.ItemCount())
}

func matchCartWeight(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
	return rules.MatchDecimal(leaf, rc.Weight())
}

func matchProductInCart(_ context.Context, rc *CartContext, leaf *rules.LeafExpression) (bool, error) {
	return rules.MatchInt64s(leaf, rc.ProductIDs())
}

// roundTo rounds an aggregate to the Precision metadata of the leaf, if any.
func roundTo(leaf *rules.LeafExpression, d decimal.Decimal) decimal.Decimal {
	if places, ok := leaf.Descriptor.Metadata().Precision(); ok {
		return d.Round(places)
	}
	return d
}

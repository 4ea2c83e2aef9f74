package scopes

import (
	"context"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Customer rule types. CustomerRole is shared with the cart scope.
const (
	RuleCustomerID     = "CustomerID"
	RuleIsActive       = "IsActive"
	RuleCreatedOn      = "CreatedOn"
	RuleBillingCountry = "BillingCountry"
)

type customerHandler func(ctx context.Context, rc *CustomerContext, leaf *rules.LeafExpression) (bool, error)

func customerRule(name string, kind rules.ValueKind, fn customerHandler, opts ...rules.DescriptorOption) ruleType {
	return ruleType{
		descriptor: rules.NewRuleDescriptor(name, types.ScopeCustomer, kind, opts...),
		handler:    rules.Typed[*CustomerContext](fn),
	}
}

func customerPlugin() plugin {
	return plugin{
		customerRule(RuleCustomerID, rules.KindIntArray, func(_ context.Context, rc *CustomerContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64(leaf, rc.Customer.ID)
		}),
		customerRule(RuleIsActive, rules.KindBoolean, func(_ context.Context, rc *CustomerContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchBool(leaf, rc.Customer.IsActive)
		}),
		customerRule(RuleCreatedOn, rules.KindDate, func(_ context.Context, rc *CustomerContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchTime(leaf, rc.Customer.CreatedOn)
		}),
		customerRule(RuleBillingCountry, rules.KindIntArray, func(_ context.Context, rc *CustomerContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64(leaf, rc.Customer.BillingCountryID)
		}),
		customerRule(RuleCustomerRole, rules.KindIntArray, func(_ context.Context, rc *CustomerContext, leaf *rules.LeafExpression) (bool, error) {
			return rules.MatchInt64s(leaf, rc.Customer.RoleIDs)
		}, rules.ComparingSequences()),
	}
}

// Package scopes provides the built-in rule types of the commerce scopes.
//
// Each scope has a context struct the caller fills in (CartContext,
// CustomerContext, ProductContext, AttributeContext), the descriptors of the
// rule types it understands and the handlers that read a runtime value out of
// the context and compare it with a compiled leaf. NewCatalog wires
// everything into per-scope registries for the compiler and the engine.
package scopes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/types"
)

// UserAgent describes the client that issued the request.
type UserAgent struct {
	Platform            string `json:"platform"`
	Device              string `json:"device"`
	Browser             string `json:"browser"`
	BrowserMajorVersion int64  `json:"browser_major_version"`
	IsMobile            bool   `json:"is_mobile"`
}

// Customer is the shopper an evaluation runs for.
type Customer struct {
	ID               int64     `json:"id"`
	IsActive         bool      `json:"is_active"`
	CreatedOn        time.Time `json:"created_on"`
	BillingCountryID int64     `json:"billing_country_id"`
	RoleIDs          []int64   `json:"role_ids"`
}

// CartItem is one line of a shopping cart.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Weight    decimal.Decimal `json:"weight"`
}

// CartContext is evaluated by cart scope rule sets.
type CartContext struct {
	Customer  Customer   `json:"customer"`
	Items     []CartItem `json:"items"`
	Currency  string     `json:"currency"`
	UserAgent UserAgent  `json:"user_agent"`
}

// CustomerContext is evaluated by customer scope rule sets.
type CustomerContext struct {
	Customer Customer `json:"customer"`
}

// ProductContext is evaluated by product scope rule sets.
type ProductContext struct {
	ProductID      int64           `json:"product_id"`
	CategoryIDs    []int64         `json:"category_ids"`
	Price          decimal.Decimal `json:"price"`
	ManufacturerID int64           `json:"manufacturer_id"`
	Sku            string          `json:"sku"`
	// Weight is the shipping weight in kilograms.
	Weight         float64         `json:"weight"`
}

// AttributeValue is one selected value of a product attribute.
type AttributeValue struct {
	AttributeID     int64           `json:"attribute_id"`
	ValueID         int64           `json:"value_id"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

// AttributeContext is evaluated by product attribute scope rule sets.
type AttributeContext struct {
	ProductID int64            `json:"product_id"`
	Selected  []AttributeValue `json:"selected"`
}

// SelectedValues returns the value ids selected for one attribute.
func (c *AttributeContext) SelectedValues(attributeID int64) []int64 {
	var ids []int64
	for _, v := range c.Selected {
		if v.AttributeID == attributeID {
			ids = append(ids, v.ValueID)
		}
	}
	return ids
}

// DecodeContext decodes a JSON document into the context type of scope.
// The result is a pointer (e.g. *CartContext) ready for Engine.Evaluate.
func DecodeContext(scope types.Scope, data []byte) (any, error) {
	var rc any
	switch scope {
	case types.ScopeCart:
		rc = &CartContext{}
	case types.ScopeCustomer:
		rc = &CustomerContext{}
	case types.ScopeProduct:
		rc = &ProductContext{}
	case types.ScopeProductAttribute:
		rc = &AttributeContext{}
	default:
		return nil, fmt.Errorf("%w: no context type for scope %s", types.ErrInvalidScope, scope)
	}

	if len(data) == 0 {
		return rc, nil
	}
	if err := json.Unmarshal(data, rc); err != nil {
		return nil, fmt.Errorf("decode %s context: %w", scope, err)
	}
	return rc, nil
}

// ScopeOf returns the scope whose handlers accept rc.
func ScopeOf(rc any) (types.Scope, bool) {
	switch rc.(type) {
	case *CartContext:
		return types.ScopeCart, true
	case *CustomerContext:
		return types.ScopeCustomer, true
	case *ProductContext:
		return types.ScopeProduct, true
	case *AttributeContext:
		return types.ScopeProductAttribute, true
	default:
		return types.ScopeOther, false
	}
}

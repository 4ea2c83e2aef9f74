package scopes

import (
	"context"
	"errors"
	"testing"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// evaluateRule compiles a single-leaf rule set of scope and evaluates it against rc.
func evaluateRule(t *testing.T, catalog *Catalog, scope types.Scope, rc any, ruleType, op, value string) (bool, error) {
	t.Helper()
	reg, err := catalog.Lookup(scope)
	if err != nil {
		t.Fatalf("Lookup(%s) error = %v", scope, err)
	}

	rs := &types.RuleSet{
		ID:       1,
		Scope:    scope,
		IsActive: true,
		Rules:    []types.Rule{{ID: 10, RuleSetID: 1, RuleType: ruleType, Operator: op, Value: value}},
	}
	compiled, err := rules.NewCompiler(reg.Descriptors).Compile(rs, types.RuleSetGraph{1: rs})
	if err != nil {
		t.Fatalf("Compile(%s %s %q) error = %v", ruleType, op, value, err)
	}
	return rules.NewEngine(reg.Handlers).Evaluate(context.Background(), compiled, rc)
}

func TestNewCatalog(t *testing.T) {
	catalog, err := NewCatalog(Attribute{ID: 5, Name: "Color"}, Attribute{ID: 6, Name: "Size"})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	for _, scope := range Scopes {
		reg, err := catalog.Lookup(scope)
		if err != nil {
			t.Fatalf("Lookup(%s) error = %v", scope, err)
		}
		if reg.Descriptors.Scope() != scope || reg.Handlers.Scope() != scope {
			t.Errorf("registries of %s have scopes %s/%s", scope, reg.Descriptors.Scope(), reg.Handlers.Scope())
		}
		for _, d := range reg.Descriptors.Descriptors() {
			if _, ok := reg.Handlers.Lookup(d.Name()); !ok {
				t.Errorf("%s descriptor %s has no handler", scope, d.Name())
			}
		}
	}

	attrs, _ := catalog.Lookup(types.ScopeProductAttribute)
	d := attrs.Descriptors.Find("variant5")
	if id, _ := d.Metadata().ParentID(); !d.IsValid() || id != 5 {
		t.Errorf("Variant5 descriptor = %v (ParentId %d)", d.Name(), id)
	}
}

func TestNewCatalog_SharedRuleTypeNames(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	cart, _ := catalog.Lookup(types.ScopeCart)
	customer, _ := catalog.Lookup(types.ScopeCustomer)
	if cart.Descriptors.Find(RuleCustomerRole) == customer.Descriptors.Find(RuleCustomerRole) {
		t.Errorf("CustomerRole shares one descriptor across scopes")
	}
	if cart.Descriptors.Find(RuleCustomerRole).Scope() != types.ScopeCart {
		t.Errorf("cart CustomerRole has scope %s", cart.Descriptors.Find(RuleCustomerRole).Scope())
	}
}

func TestNewCatalog_DuplicateAttribute(t *testing.T) {
	_, err := NewCatalog(Attribute{ID: 5, Name: "Color"}, Attribute{ID: 5, Name: "Colour"})
	if !errors.Is(err, types.ErrDuplicateDescriptor) {
		t.Errorf("NewCatalog() error = %v, want ErrDuplicateDescriptor", err)
	}
}

func TestCatalog_LookupUnknownScope(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	if _, err := catalog.Lookup(types.ScopeOther); !errors.Is(err, types.ErrInvalidScope) {
		t.Errorf("Lookup(other) error = %v, want ErrInvalidScope", err)
	}
}

func TestDecodeContext(t *testing.T) {
	rc, err := DecodeContext(types.ScopeCart, []byte(`{
		"customer": {"id": 7, "role_ids": [1, 3]},
		"items": [{"product_id": 2, "quantity": 3, "unit_price": "9.99", "weight": 0.5}],
		"currency": "EUR",
		"user_agent": {"browser": "Firefox", "browser_major_version": 128}
	}`))
	if err != nil {
		t.Fatalf("DecodeContext() error = %v", err)
	}

	cart, ok := rc.(*CartContext)
	if !ok {
		t.Fatalf("DecodeContext() = %T, want *CartContext", rc)
	}
	if cart.Customer.ID != 7 || len(cart.Customer.RoleIDs) != 2 {
		t.Errorf("Customer = %+v", cart.Customer)
	}
	if got := cart.Total().String(); got != "29.97" {
		t.Errorf("Total() = %s, want 29.97", got)
	}
	if got := cart.Weight().String(); got != "1.5" {
		t.Errorf("Weight() = %s, want 1.5", got)
	}
	if cart.UserAgent.BrowserMajorVersion != 128 {
		t.Errorf("BrowserMajorVersion = %d, want 128", cart.UserAgent.BrowserMajorVersion)
	}
}

func TestDecodeContext_Errors(t *testing.T) {
	if _, err := DecodeContext(types.ScopeOther, []byte(`{}`)); !errors.Is(err, types.ErrInvalidScope) {
		t.Errorf("DecodeContext(other) error = %v, want ErrInvalidScope", err)
	}
	if _, err := DecodeContext(types.ScopeProduct, []byte(`{"price": "cheap"}`)); err == nil {
		t.Errorf("DecodeContext() accepted an invalid price")
	}

	rc, err := DecodeContext(types.ScopeCustomer, nil)
	if err != nil {
		t.Fatalf("DecodeContext(nil) error = %v", err)
	}
	if _, ok := rc.(*CustomerContext); !ok {
		t.Errorf("DecodeContext(nil) = %T, want *CustomerContext", rc)
	}
}

func TestScopeOf(t *testing.T) {
	for _, scope := range Scopes {
		rc, err := DecodeContext(scope, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got, ok := ScopeOf(rc); !ok || got != scope {
			t.Errorf("ScopeOf(%T) = %v, %v, want %v", rc, got, ok, scope)
		}
	}
	if _, ok := ScopeOf(struct{}{}); ok {
		t.Error("ScopeOf(struct{}) reported a scope")
	}
}

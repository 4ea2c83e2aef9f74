package scopes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

func sampleCart() *CartContext {
	return &CartContext{
		Customer: Customer{ID: 7, RoleIDs: []int64{1, 3}},
		Items: []CartItem{
			{ProductID: 2, Quantity: 2, UnitPrice: decimal.RequireFromString("10.125"), Weight: decimal.RequireFromString("0.25")},
			{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("4.999"), Weight: decimal.RequireFromString("1")},
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.Zero},
		},
		Currency: "usd",
		UserAgent: UserAgent{
			Platform:            "Linux",
			Browser:             "Chrome",
			BrowserMajorVersion: 120,
		},
	}
}

func TestCartRules(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	tests := []struct {
		name     string
		ruleType string
		op       string
		value    string
		want     bool
	}{
		// 20.25 + 4.999 rounds to 25.25
		{"total rounded", RuleCartTotal, "Equal", "25.25", true},
		{"total below", RuleCartTotal, "LessThan", "25", false},
		{"item count", RuleCartItemCount, "GreaterThanOrEqual", "4", true},
		{"weight", RuleCartWeight, "Equal", "1.5", true},
		{"product in cart contains", RuleProductInCart, "Contains", "2", true},
		{"product in cart exact", RuleProductInCart, "IsEqualTo", "1,2", true},
		{"product in cart all in", RuleProductInCart, "AllIn", "1,2,3", true},
		{"product in cart missing", RuleProductInCart, "Contains", "2,9", false},
		{"customer role", RuleCustomerRole, "IsEqualTo", "3,1", true},
		{"customer role disjoint", RuleCustomerRole, "NotContains", "4,5", true},
		{"currency", RuleCurrency, "In", "EUR,USD", true},
		{"currency not in", RuleCurrency, "NotIn", "EUR,GBP", true},
		{"browser", RuleBrowser, "In", "chrome,edge", true},
		{"device unknown", RuleDevice, "In", "tablet", false},
		{"browser version", RuleBrowserMajorVersion, "GreaterThan", "100", true},
		{"is mobile", RuleIsMobile, "Equal", "false", true},
		{"empty list is vacuous", RulePlatform, "In", "", true},
		{"unresolved signal never matches", RuleDevice, "In", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateRule(t, catalog, types.ScopeCart, sampleCart(), tt.ruleType, tt.op, tt.value)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("%s %s %q = %v, want %v", tt.ruleType, tt.op, tt.value, got, tt.want)
			}
		})
	}
}

func TestCartRules_InvalidOperator(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	_, err = evaluateRule(t, catalog, types.ScopeCart, sampleCart(), RuleCurrency, "Contains", "USD")
	if !errors.Is(err, types.ErrInvalidRuleOperator) {
		t.Errorf("Evaluate() error = %v, want ErrInvalidRuleOperator", err)
	}
}

func TestCustomerRules(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	rc := &CustomerContext{Customer: Customer{
		ID:               42,
		IsActive:         true,
		CreatedOn:        time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
		BillingCountryID: 31,
		RoleIDs:          []int64{2},
	}}

	tests := []struct {
		name     string
		ruleType string
		op       string
		value    string
		want     bool
	}{
		{"customer id", RuleCustomerID, "In", "41,42", true},
		{"customer id excluded", RuleCustomerID, "NotIn", "42", false},
		{"active", RuleIsActive, "Equal", "true", true},
		{"created before", RuleCreatedOn, "LessThan", "2023-01-01", true},
		{"billing country", RuleBillingCountry, "In", "31,32", true},
		{"role all in", RuleCustomerRole, "AllIn", "1,2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateRule(t, catalog, types.ScopeCustomer, rc, tt.ruleType, tt.op, tt.value)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("%s %s %q = %v, want %v", tt.ruleType, tt.op, tt.value, got, tt.want)
			}
		})
	}
}

func TestProductRules(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	rc := &ProductContext{
		ProductID:      100,
		CategoryIDs:    []int64{4, 8, 15},
		Price:          decimal.RequireFromString("49.90"),
		ManufacturerID: 3,
		Sku:            "TSHIRT-RED",
		Weight:         0.2,
	}

	tests := []struct {
		name     string
		ruleType string
		op       string
		value    string
		want     bool
	}{
		{"product id", RuleProductID, "In", "100", true},
		{"categories overlap", RuleCategoryIDs, "In", "15,16", true},
		{"categories not all in", RuleCategoryIDs, "NotAllIn", "1,2", true},
		{"price", RulePrice, "LessThan", "50", true},
		{"manufacturer", RuleManufacturer, "NotIn", "1,2", true},
		{"sku ignores case", RuleSku, "Equal", "tshirt-red", true},
		{"weight", RuleWeight, "LessThanOrEqual", "0.25", true},
		{"weight above", RuleWeight, "GreaterThan", "0.25", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateRule(t, catalog, types.ScopeProduct, rc, tt.ruleType, tt.op, tt.value)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("%s %s %q = %v, want %v", tt.ruleType, tt.op, tt.value, got, tt.want)
			}
		})
	}
}

func TestAttributeRules(t *testing.T) {
	catalog, err := NewCatalog(
		Attribute{ID: 5, Name: "Color"},
		Attribute{ID: 6, Name: "Size"},
		Attribute{ID: 8, Name: "Extras", MultiSelect: true},
	)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	rc := &AttributeContext{
		ProductID: 100,
		Selected: []AttributeValue{
			{AttributeID: 5, ValueID: 51, PriceAdjustment: decimal.RequireFromString("1.005")},
			{AttributeID: 6, ValueID: 62, PriceAdjustment: decimal.RequireFromString("2.50")},
			{AttributeID: 8, ValueID: 81},
			{AttributeID: 8, ValueID: 83},
		},
	}

	tests := []struct {
		name     string
		ruleType string
		op       string
		value    string
		want     bool
	}{
		{"color selected", VariantRuleType(5), "In", "50,51", true},
		{"size not selected", VariantRuleType(6), "In", "60,61", false},
		{"size excluded", VariantRuleType(6), "NotIn", "60,61", true},
		// 1.005 + 2.50 rounds to 3.51
		{"price adjustment", RulePriceAdjustment, "Equal", "3.51", true},
		{"unknown attribute never matches", VariantRuleType(7), "In", "70", false},
		{"multi select contains", VariantRuleType(8), "Contains", "83", true},
		{"multi select contains missing", VariantRuleType(8), "Contains", "81,82", false},
		{"multi select exact", VariantRuleType(8), "IsEqualTo", "83,81", true},
		{"multi select not exact", VariantRuleType(8), "IsEqualTo", "81", false},
		{"multi select all in", VariantRuleType(8), "AllIn", "81,82,83", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateRule(t, catalog, types.ScopeProductAttribute, rc, tt.ruleType, tt.op, tt.value)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("%s %s %q = %v, want %v", tt.ruleType, tt.op, tt.value, got, tt.want)
			}
		})
	}
}

func TestAttributeRules_ZeroAttributeID(t *testing.T) {
	catalog, err := NewCatalog(Attribute{ID: 0, Name: "Broken"})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	tests := []struct {
		name  string
		rc    *AttributeContext
		op    string
		value string
	}{
		{"value without attribute id", &AttributeContext{Selected: []AttributeValue{{ValueID: 5}}}, "In", "5"},
		{"empty rule value", &AttributeContext{}, "In", ""},
		{"excluded value", &AttributeContext{}, "NotIn", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateRule(t, catalog, types.ScopeProductAttribute, tt.rc, VariantRuleType(0), tt.op, tt.value)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got {
				t.Errorf("Variant0 %s %q matched, want non-match", tt.op, tt.value)
			}
		})
	}
}

func TestMatchVariant_MissingParentID(t *testing.T) {
	leaf := &rules.LeafExpression{
		RuleType:   "Variant5",
		Descriptor: rules.NewRuleDescriptor("Variant5", types.ScopeProductAttribute, rules.KindIntArray),
		Operator:   rules.OpNotIn,
		Value:      []int64{},
	}
	rc := &AttributeContext{Selected: []AttributeValue{{AttributeID: 5, ValueID: 51}}}

	got, err := matchVariant(context.Background(), rc, leaf)
	if err != nil || got {
		t.Errorf("matchVariant() = (%v, %v), want (false, nil)", got, err)
	}
}

func TestAttributeDescriptors(t *testing.T) {
	descs := AttributeDescriptors([]Attribute{{ID: 9, Name: "Material"}, {ID: 10, Name: "Extras", MultiSelect: true}})
	if len(descs) != 2 {
		t.Fatalf("len = %d, want 2", len(descs))
	}
	if id, _ := descs[0].Metadata().ParentID(); descs[0].Name() != "Variant9" || id != 9 {
		t.Errorf("descriptor = %s (ParentId %d)", descs[0].Name(), id)
	}
	if name, _ := descs[0].Metadata().String("Name"); name != "Material" {
		t.Errorf("Name metadata = %q, want Material", name)
	}
	if descs[0].IsComparingSequences() {
		t.Errorf("%s compares sequences, want single select", descs[0].Name())
	}
	if !descs[1].IsComparingSequences() || !descs[1].IsValidOperator(rules.OpIsEqualTo) {
		t.Errorf("%s does not compare sequences", descs[1].Name())
	}
}

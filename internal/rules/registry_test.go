package rules

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/solatis/rulekeeper/internal/types"
)

func TestDescriptor_ValidOperators(t *testing.T) {
	tests := []struct {
		name string
		desc *RuleDescriptor
		want []Operator
	}{
		{"int", NewRuleDescriptor("A", testScope, KindInt), orderingOperators},
		{"date", NewRuleDescriptor("A", testScope, KindDate), orderingOperators},
		{"string", NewRuleDescriptor("A", testScope, KindString), equalityOperators},
		{"bool", NewRuleDescriptor("A", testScope, KindBoolean), equalityOperators},
		{"array", NewRuleDescriptor("A", testScope, KindStringArray), membershipOperators},
		{"array sequences", NewRuleDescriptor("A", testScope, KindDecimalArray, ComparingSequences()), sequenceOperators},
		{"none", NewRuleDescriptor("A", testScope, KindNone), nil},
		{"sequences on scalar ignored", NewRuleDescriptor("A", testScope, KindInt, ComparingSequences()), orderingOperators},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.ValidOperators(); !slices.Equal(got, tt.want) {
				t.Errorf("ValidOperators() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescriptor_ValidOperatorsIsCopy(t *testing.T) {
	desc := NewRuleDescriptor("A", testScope, KindInt)
	ops := desc.ValidOperators()
	ops[0] = OpContains

	if desc.IsValidOperator(OpContains) {
		t.Errorf("mutating ValidOperators() changed the descriptor")
	}
	if orderingOperators[0] != OpEqual {
		t.Errorf("mutating ValidOperators() changed the shared table")
	}
}

func TestInvalidRuleDescriptor(t *testing.T) {
	if InvalidRuleDescriptor.IsValid() {
		t.Errorf("IsValid() = true")
	}
	if InvalidRuleDescriptor.Kind() != KindNone {
		t.Errorf("Kind() = %v, want none", InvalidRuleDescriptor.Kind())
	}
	if len(InvalidRuleDescriptor.ValidOperators()) != 0 {
		t.Errorf("ValidOperators() not empty")
	}
}

func TestMetadata(t *testing.T) {
	m := NewMetadata().ParentID(42).Precision(2).Set("Label", "Color").Build()

	if id, ok := m.ParentID(); !ok || id != 42 {
		t.Errorf("ParentID() = (%d, %v), want (42, true)", id, ok)
	}
	if p, ok := m.Precision(); !ok || p != 2 {
		t.Errorf("Precision() = (%d, %v), want (2, true)", p, ok)
	}
	if s, ok := m.String("Label"); !ok || s != "Color" {
		t.Errorf("String(Label) = (%q, %v), want (Color, true)", s, ok)
	}
	if got := m.Keys(); !slices.Equal(got, []string{"Label", MetadataParentID, MetadataPrecision}) {
		t.Errorf("Keys() = %v", got)
	}

	var empty Metadata
	if _, ok := empty.ParentID(); ok || empty.Len() != 0 {
		t.Errorf("zero Metadata not empty")
	}
	if _, ok := empty.Precision(); ok {
		t.Errorf("Precision() set on zero Metadata")
	}
}

func TestMetadataBuilder_BuildIsSnapshot(t *testing.T) {
	b := NewMetadata().ParentID(1)
	first := b.Build()
	b.ParentID(2)

	if id, _ := first.ParentID(); id != 1 {
		t.Errorf("built Metadata changed after builder reuse: %d", id)
	}
}

func TestDescriptorRegistry(t *testing.T) {
	reg := testRegistry(t)

	if reg.Len() != len(testDescriptors()) {
		t.Errorf("Len() = %d, want %d", reg.Len(), len(testDescriptors()))
	}
	if d := reg.Find("TOTAL"); d.Name() != "Total" {
		t.Errorf("Find(TOTAL) = %s, want Total", d.Name())
	}
	if d := reg.Find("missing"); d != InvalidRuleDescriptor {
		t.Errorf("Find(missing) = %v, want InvalidRuleDescriptor", d.Name())
	}
	if names := reg.Descriptors(); names[0].Name() != "Total" {
		t.Errorf("Descriptors() not in registration order")
	}
}

func TestDescriptorRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		descs   []*RuleDescriptor
		wantErr error
	}{
		{
			name: "duplicate ignoring case",
			descs: []*RuleDescriptor{
				NewRuleDescriptor("Total", testScope, KindDecimal),
				NewRuleDescriptor("total", testScope, KindInt),
			},
			wantErr: types.ErrDuplicateDescriptor,
		},
		{
			name:    "scope mismatch",
			descs:   []*RuleDescriptor{NewRuleDescriptor("Total", types.ScopeCart, KindDecimal)},
			wantErr: types.ErrScopeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := DescriptorProviderFunc(func() []*RuleDescriptor { return tt.descs })
			_, err := NewDescriptorRegistry(testScope, provider)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewDescriptorRegistry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	unnamed := DescriptorProviderFunc(func() []*RuleDescriptor {
		return []*RuleDescriptor{NewRuleDescriptor("", testScope, KindInt)}
	})
	if _, err := NewDescriptorRegistry(testScope, unnamed); err == nil {
		t.Errorf("NewDescriptorRegistry() accepted a descriptor without name")
	}
}

func TestHandlerRegistry(t *testing.T) {
	reg := NewHandlerRegistry(testScope)
	h := HandlerFunc(func(context.Context, any, *LeafExpression) (bool, error) { return true, nil })

	if err := reg.Register("CartTotal", h); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("carttotal", h); !errors.Is(err, types.ErrDuplicateHandler) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateHandler", err)
	}
	if _, ok := reg.Lookup("CARTTOTAL"); !ok {
		t.Errorf("Lookup() is case-sensitive")
	}
	if _, ok := reg.Lookup("Other"); ok {
		t.Errorf("Lookup(Other) found a handler")
	}
	if reg.Scope() != testScope {
		t.Errorf("Scope() = %v, want %v", reg.Scope(), testScope)
	}
}

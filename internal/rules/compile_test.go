// internal/rules/compile_test.go
package rules

import (
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/solatis/rulekeeper/internal/types"
)

const testScope = types.ScopeOther

func testDescriptors() []*RuleDescriptor {
	return []*RuleDescriptor{
		NewRuleDescriptor("Total", testScope, KindDecimal),
		NewRuleDescriptor("Count", testScope, KindInt),
		NewRuleDescriptor("Role", testScope, KindString),
		NewRuleDescriptor("Category", testScope, KindIntArray),
		NewRuleDescriptor("Tags", testScope, KindStringArray, ComparingSequences()),
		NewRuleDescriptor("Active", testScope, KindBoolean),
	}
}

func testRegistry(t *testing.T) *DescriptorRegistry {
	t.Helper()
	reg, err := NewDescriptorRegistry(testScope, DescriptorProviderFunc(testDescriptors))
	if err != nil {
		t.Fatalf("NewDescriptorRegistry() error = %v", err)
	}
	return reg
}

func leafRule(id int64, ruleType, op, value string, order int) types.Rule {
	return types.Rule{ID: id, RuleType: ruleType, Operator: op, Value: value, DisplayOrder: order}
}

func groupRule(id, child int64, order int) types.Rule {
	return types.Rule{ID: id, RuleType: types.GroupRuleType, Value: strconv.FormatInt(child, 10), DisplayOrder: order}
}

func ruleSet(id int64, op types.LogicalOperator, rules ...types.Rule) *types.RuleSet {
	return &types.RuleSet{ID: id, Scope: testScope, IsActive: true, LogicalOperator: op, Rules: rules}
}

func graphOf(sets ...*types.RuleSet) types.RuleSetGraph {
	g := make(types.RuleSetGraph, len(sets))
	for _, rs := range sets {
		g[rs.ID] = rs
	}
	return g
}

func leafIDs(g *GroupExpression) []int64 {
	var ids []int64
	for _, child := range g.Children {
		if leaf, ok := child.(*LeafExpression); ok {
			ids = append(ids, leaf.RuleID)
		}
	}
	return ids
}

func TestCompile_Leaves(t *testing.T) {
	root := ruleSet(1, types.LogicalAnd,
		leafRule(10, "Count", "GreaterThan", "3", 0),
		leafRule(11, "role", "equal", "admin", 1),
	)

	compiled, err := NewCompiler(testRegistry(t)).Compile(root, graphOf(root))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}

	if compiled.RuleSetID != 1 {
		t.Errorf("RuleSetID = %d, want 1", compiled.RuleSetID)
	}
	if len(compiled.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(compiled.Children))
	}

	count := compiled.Children[0].(*LeafExpression)
	if count.Operator != OpGreaterThan {
		t.Errorf("Operator = %v, want GreaterThan", count.Operator)
	}
	if count.IntValue() != 3 {
		t.Errorf("IntValue() = %d, want 3", count.IntValue())
	}
	if count.Descriptor.Name() != "Count" {
		t.Errorf("Descriptor = %s, want Count", count.Descriptor.Name())
	}

	role := compiled.Children[1].(*LeafExpression)
	if role.Descriptor.Name() != "Role" {
		t.Errorf("case-insensitive descriptor lookup failed: got %s", role.Descriptor.Name())
	}
	if role.StringValue() != "admin" {
		t.Errorf("StringValue() = %q, want admin", role.StringValue())
	}
}

func TestCompile_DisplayOrder(t *testing.T) {
	root := ruleSet(1, types.LogicalAnd,
		leafRule(30, "Count", "Equal", "1", 2),
		leafRule(20, "Count", "Equal", "1", 1),
		leafRule(12, "Count", "Equal", "1", 0),
		leafRule(11, "Count", "Equal", "1", 0),
	)

	compiled, err := NewCompiler(testRegistry(t)).Compile(root, graphOf(root))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := []int64{11, 12, 20, 30}
	if got := leafIDs(compiled); !slices.Equal(got, want) {
		t.Errorf("leaf order = %v, want %v", got, want)
	}
	if root.Rules[0].ID != 30 {
		t.Errorf("Compile() reordered the persisted rules")
	}
}

func TestCompile_NestedGroups(t *testing.T) {
	child := ruleSet(2, types.LogicalOr,
		leafRule(20, "Role", "Equal", "admin", 0),
		leafRule(21, "Role", "Equal", "staff", 1),
	)
	child.IsSubGroup = true
	root := ruleSet(1, types.LogicalAnd,
		leafRule(10, "Count", "GreaterThan", "0", 0),
		groupRule(11, 2, 1),
	)

	compiled, err := NewCompiler(testRegistry(t)).Compile(root, graphOf(root, child))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	group, ok := compiled.Children[1].(*GroupExpression)
	if !ok {
		t.Fatalf("Children[1] = %T, want *GroupExpression", compiled.Children[1])
	}
	if group.RuleSetID != 2 || group.LogicalOperator != types.LogicalOr {
		t.Errorf("group = {%d, %v}, want {2, or}", group.RuleSetID, group.LogicalOperator)
	}
	if got := leafIDs(group); !slices.Equal(got, []int64{20, 21}) {
		t.Errorf("group leaves = %v, want [20 21]", got)
	}
}

func TestCompile_DiamondSharesGroup(t *testing.T) {
	shared := ruleSet(4, types.LogicalAnd, leafRule(40, "Count", "Equal", "1", 0))
	left := ruleSet(2, types.LogicalAnd, groupRule(20, 4, 0))
	right := ruleSet(3, types.LogicalAnd, groupRule(30, 4, 0))
	root := ruleSet(1, types.LogicalOr, groupRule(10, 2, 0), groupRule(11, 3, 1))

	compiled, err := NewCompiler(testRegistry(t)).Compile(root, graphOf(root, left, right, shared))
	if err != nil {
		t.Fatalf("Compile() error = %v, diamonds are not cycles", err)
	}

	viaLeft := compiled.Children[0].(*GroupExpression).Children[0]
	viaRight := compiled.Children[1].(*GroupExpression).Children[0]
	if viaLeft != viaRight {
		t.Errorf("shared rule set compiled twice")
	}
}

func TestCompile_Cycles(t *testing.T) {
	tests := []struct {
		name     string
		sets     []*types.RuleSet
		wantPath []int64
	}{
		{
			name:     "self reference",
			sets:     []*types.RuleSet{ruleSet(1, types.LogicalAnd, groupRule(10, 1, 0))},
			wantPath: []int64{1, 1},
		},
		{
			name: "direct",
			sets: []*types.RuleSet{
				ruleSet(1, types.LogicalAnd, groupRule(10, 2, 0)),
				ruleSet(2, types.LogicalAnd, groupRule(20, 1, 0)),
			},
			wantPath: []int64{1, 2, 1},
		},
		{
			name: "transitive below root",
			sets: []*types.RuleSet{
				ruleSet(1, types.LogicalAnd, leafRule(10, "Count", "Equal", "1", 0), groupRule(11, 2, 1)),
				ruleSet(2, types.LogicalOr, groupRule(20, 3, 0)),
				ruleSet(3, types.LogicalAnd, groupRule(30, 4, 0)),
				ruleSet(4, types.LogicalAnd, groupRule(40, 2, 0)),
			},
			wantPath: []int64{1, 2, 3, 4, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler(testRegistry(t)).Compile(tt.sets[0], graphOf(tt.sets...))
			if !errors.Is(err, types.ErrCompilationCycle) {
				t.Fatalf("Compile() error = %v, want ErrCompilationCycle", err)
			}
			var cycle *CycleError
			if !errors.As(err, &cycle) {
				t.Fatalf("Compile() error = %T, want *CycleError", err)
			}
			if !slices.Equal(cycle.Path, tt.wantPath) {
				t.Errorf("Path = %v, want %v", cycle.Path, tt.wantPath)
			}
		})
	}
}

func TestCompile_UnknownRuleType(t *testing.T) {
	root := ruleSet(1, types.LogicalAnd, leafRule(10, "Weather", "Equal", "sunny", 0))

	compiled, err := NewCompiler(testRegistry(t)).Compile(root, graphOf(root))
	if err != nil {
		t.Fatalf("Compile() error = %v, unknown rule types compile", err)
	}

	leaf := compiled.Children[0].(*LeafExpression)
	if leaf.Descriptor != InvalidRuleDescriptor {
		t.Errorf("Descriptor = %v, want InvalidRuleDescriptor", leaf.Descriptor.Name())
	}
	if leaf.Value != "sunny" {
		t.Errorf("Value = %v, want raw value", leaf.Value)
	}
}

func TestCompile_UnknownOperator(t *testing.T) {
	root := ruleSet(1, types.LogicalAnd, leafRule(10, "Count", "Between", "1", 0))

	compiled, err := NewCompiler(testRegistry(t)).Compile(root, graphOf(root))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if op := compiled.Children[0].(*LeafExpression).Operator; op != OpUnspecified {
		t.Errorf("Operator = %v, want Unspecified", op)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		root    *types.RuleSet
		others  []*types.RuleSet
		wantErr error
	}{
		{
			name:    "bad value",
			root:    ruleSet(1, types.LogicalAnd, leafRule(10, "Count", "Equal", "many", 0)),
			wantErr: types.ErrInvalidRuleValue,
		},
		{
			name:    "bad group reference",
			root:    ruleSet(1, types.LogicalAnd, types.Rule{ID: 10, RuleType: types.GroupRuleType, Value: "two"}),
			wantErr: types.ErrInvalidRuleValue,
		},
		{
			name:    "missing group",
			root:    ruleSet(1, types.LogicalAnd, groupRule(10, 99, 0)),
			wantErr: types.ErrRuleSetNotFound,
		},
		{
			name:    "child scope mismatch",
			root:    ruleSet(1, types.LogicalAnd, groupRule(10, 2, 0)),
			others:  []*types.RuleSet{{ID: 2, Scope: types.ScopeCart}},
			wantErr: types.ErrScopeMismatch,
		},
		{
			name:    "root scope mismatch",
			root:    &types.RuleSet{ID: 1, Scope: types.ScopeProduct},
			wantErr: types.ErrScopeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := graphOf(append([]*types.RuleSet{tt.root}, tt.others...)...)
			_, err := NewCompiler(testRegistry(t)).Compile(tt.root, graph)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_NilRoot(t *testing.T) {
	_, err := NewCompiler(testRegistry(t)).Compile(nil, types.RuleSetGraph{})
	if !errors.Is(err, types.ErrRuleSetNotFound) {
		t.Errorf("Compile(nil) error = %v, want ErrRuleSetNotFound", err)
	}
}

func TestBitset(t *testing.T) {
	var b bitset
	for _, i := range []int{0, 63, 64, 200} {
		b.set(i)
	}
	for _, i := range []int{0, 63, 64, 200} {
		if !b.has(i) {
			t.Errorf("has(%d) = false after set", i)
		}
	}
	if b.has(1) || b.has(500) {
		t.Errorf("has() reports unset bits")
	}
	b.clear(64)
	if b.has(64) || !b.has(63) {
		t.Errorf("clear(64) touched the wrong bits")
	}
}

// internal/rules/compile.go
package rules

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule set compilation.
 *
 * Compiles a persisted types.RuleSet tree into an immutable expression tree
 * of GroupExpression and LeafExpression nodes.
 *
 * Compilation workflow:
 *   1. Visit the rule set's rules in DisplayOrder (stable, ties by rule id)
 *   2. Group rules: resolve the child rule set and compile it recursively
 *   3. Leaf rules: find the descriptor, parse the operator, decode the value
 *
 * Arena + index: every visited rule set gets a dense index on first sight and
 * its compiled group lives in a flat arena at that index. A "compiling" bitset
 * marks the rule sets on the active path; re-entering one of them is a cycle
 * and fails with *CycleError before any child is linked. Rule sets referenced
 * from several places (diamonds) are compiled once and shared.
 *
 * Unknown rule types compile to leaves with InvalidRuleDescriptor and keep
 * their raw value; they never match. Unknown operators compile to
 * OpUnspecified and fail at evaluation with ErrInvalidRuleOperator. A value
 * that does not decode for a known descriptor fails compilation.
 */

// Resolver supplies rule sets referenced by group rules.
type Resolver interface {
	ResolveRuleSet(id int64) (*types.RuleSet, bool)
}

// Expression is a compiled node: *GroupExpression or *LeafExpression.
type Expression interface {
	expression()
}

// GroupExpression combines child expressions with one logical operator.
type GroupExpression struct {
	RuleSetID       int64
	LogicalOperator types.LogicalOperator
	Children        []Expression
}

// LeafExpression is a single compiled rule.
type LeafExpression struct {
	RuleID     int64
	RuleType   string
	Descriptor *RuleDescriptor
	Operator   Operator
	RawValue   string
	Value      any
}

func (*GroupExpression) expression() {}
func (*LeafExpression) expression()  {}

// CycleError reports a group reference that re-enters a rule set on the
// active compilation path. Path lists rule set ids from the root to the
// repeated id.
type CycleError struct {
	Path []int64
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.Path))
	for i, id := range e.Path {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%v: %s", types.ErrCompilationCycle, strings.Join(ids, " -> "))
}

func (e *CycleError) Unwrap() error {
	return types.ErrCompilationCycle
}

// Compiler turns persisted rule sets into expression trees using the
// descriptors of one scope. It is stateless and safe for concurrent use.
type Compiler struct {
	descriptors *DescriptorRegistry
}

// NewCompiler creates a compiler for the scope of descriptors.
func NewCompiler(descriptors *DescriptorRegistry) *Compiler {
	return &Compiler{descriptors: descriptors}
}

// Compile compiles root and every rule set reachable from it.
func (c *Compiler) Compile(root *types.RuleSet, resolver Resolver) (*GroupExpression, error) {
	if root == nil {
		return nil, types.ErrRuleSetNotFound
	}
	if root.Scope != c.descriptors.Scope() {
		compileErrors.WithLabelValues("scope").Inc()
		return nil, fmt.Errorf("%w: rule set %d has scope %s, compiler %s", types.ErrScopeMismatch, root.ID, root.Scope, c.descriptors.Scope())
	}

	s := &compilation{
		compiler: c,
		resolver: resolver,
		index:    make(map[int64]int),
	}
	idx, err := s.visit(root)
	if err != nil {
		compileErrors.WithLabelValues(compileErrorReason(err)).Inc()
		return nil, err
	}
	return s.arena[idx], nil
}

// compilation is the state of one Compile call.
type compilation struct {
	compiler  *Compiler
	resolver  Resolver
	index     map[int64]int
	arena     []*GroupExpression
	compiling bitset
	done      bitset
	path      []int64
}

func (s *compilation) visit(rs *types.RuleSet) (int, error) {
	idx, seen := s.index[rs.ID]
	if !seen {
		idx = len(s.arena)
		s.index[rs.ID] = idx
		s.arena = append(s.arena, nil)
	}
	if s.compiling.has(idx) {
		return 0, &CycleError{Path: append(slices.Clone(s.path), rs.ID)}
	}
	if s.done.has(idx) {
		return idx, nil
	}

	s.compiling.set(idx)
	s.path = append(s.path, rs.ID)

	group := &GroupExpression{
		RuleSetID:       rs.ID,
		LogicalOperator: rs.LogicalOperator,
		Children:        make([]Expression, 0, len(rs.Rules)),
	}

	for _, rule := range orderedRules(rs.Rules) {
		if rule.IsGroup() {
			child, err := s.resolveGroup(rs, rule)
			if err != nil {
				return 0, err
			}
			childIdx, err := s.visit(child)
			if err != nil {
				return 0, err
			}
			group.Children = append(group.Children, s.arena[childIdx])
			continue
		}

		leaf, err := s.compiler.compileLeaf(rule)
		if err != nil {
			return 0, err
		}
		group.Children = append(group.Children, leaf)
	}

	s.arena[idx] = group
	s.compiling.clear(idx)
	s.done.set(idx)
	s.path = s.path[:len(s.path)-1]
	return idx, nil
}

// resolveGroup resolves the child rule set referenced by a group rule.
func (s *compilation) resolveGroup(parent *types.RuleSet, rule types.Rule) (*types.RuleSet, error) {
	childID, err := rule.GroupID()
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w: group reference %q", rule.ID, types.ErrInvalidRuleValue, rule.Value)
	}
	child, ok := s.resolver.ResolveRuleSet(childID)
	if !ok {
		return nil, fmt.Errorf("rule %d: group %d: %w", rule.ID, childID, types.ErrRuleSetNotFound)
	}
	if child.Scope != parent.Scope {
		return nil, fmt.Errorf("%w: group %d has scope %s, parent %d has %s", types.ErrScopeMismatch, child.ID, child.Scope, parent.ID, parent.Scope)
	}
	return child, nil
}

// compileLeaf builds a LeafExpression from a non-group rule.
func (c *Compiler) compileLeaf(rule types.Rule) (*LeafExpression, error) {
	desc := c.descriptors.Find(rule.RuleType)

	value, err := Decode(rule.Value, desc.Kind())
	if err != nil {
		return nil, fmt.Errorf("rule %d (%s): %w: %q is not a %s", rule.ID, rule.RuleType, types.ErrInvalidRuleValue, rule.Value, desc.Kind())
	}

	return &LeafExpression{
		RuleID:     rule.ID,
		RuleType:   rule.RuleType,
		Descriptor: desc,
		Operator:   ParseOperator(rule.Operator),
		RawValue:   rule.Value,
		Value:      value,
	}, nil
}

// orderedRules returns rules sorted by DisplayOrder; equal orders keep rule id order.
func orderedRules(rules []types.Rule) []types.Rule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b types.Rule) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func compileErrorReason(err error) string {
	var cycle *CycleError
	switch {
	case errors.As(err, &cycle):
		return "cycle"
	case errors.Is(err, types.ErrInvalidRuleValue):
		return "value"
	case errors.Is(err, types.ErrScopeMismatch):
		return "scope"
	default:
		return "resolve"
	}
}

// bitset tracks dense rule set indexes.
type bitset []uint64

func (b bitset) has(i int) bool {
	w := i / 64
	return w < len(b) && b[w]&(1<<(uint(i)%64)) != 0
}

func (b *bitset) set(i int) {
	w := i / 64
	for len(*b) <= w {
		*b = append(*b, 0)
	}
	(*b)[w] |= 1 << (uint(i) % 64)
}

func (b bitset) clear(i int) {
	w := i / 64
	if w < len(b) {
		b[w] &^= 1 << (uint(i) % 64)
	}
}

// Typed accessors return the zero value when Value has a different type.

func (l *LeafExpression) IntValue() int64 {
	v, _ := l.Value.(int64)
	return v
}

func (l *LeafExpression) IntValues() []int64 {
	v, _ := l.Value.([]int64)
	return v
}

func (l *LeafExpression) FloatValue() float64 {
	v, _ := l.Value.(float64)
	return v
}

func (l *LeafExpression) FloatValues() []float64 {
	v, _ := l.Value.([]float64)
	return v
}

func (l *LeafExpression) DecimalValue() decimal.Decimal {
	v, _ := l.Value.(decimal.Decimal)
	return v
}

func (l *LeafExpression) DecimalValues() []decimal.Decimal {
	v, _ := l.Value.([]decimal.Decimal)
	return v
}

func (l *LeafExpression) StringValue() string {
	v, _ := l.Value.(string)
	return v
}

func (l *LeafExpression) StringValues() []string {
	v, _ := l.Value.([]string)
	return v
}

func (l *LeafExpression) TimeValue() time.Time {
	v, _ := l.Value.(time.Time)
	return v
}

func (l *LeafExpression) TimeValues() []time.Time {
	v, _ := l.Value.([]time.Time)
	return v
}

func (l *LeafExpression) BoolValue() bool {
	v, _ := l.Value.(bool)
	return v
}

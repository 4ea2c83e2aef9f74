// internal/types/rules.go
package types

import (
	"strconv"
	"time"
)

/*
 * Persisted rule definitions.
 *
 * A RuleSet is an ordered collection of Rules combined by one logical
 * operator. A Rule whose RuleType is GroupRuleType references a child RuleSet
 * by id (decimal in Value), forming a tree. The store does not guarantee the
 * tree is acyclic; internal/rules detects cycles during compilation.
 *
 * Key types:
 *   - RuleSet: root or sub group with scope, activity flag, logical operator
 *   - Rule: single leaf condition or group reference
 *   - RuleSetGraph: every rule set reachable from a root, keyed by id
 */

// GroupRuleType is the reserved rule type marking a nested group reference.
const GroupRuleType = "Group"

// Rule is one persisted row of a rule set.
type Rule struct {
	ID           int64  `db:"id" yaml:"-"`
	RuleSetID    int64  `db:"rule_set_id" yaml:"-"`
	RuleType     string `db:"rule_type" yaml:"type"`
	Operator     string `db:"operator" yaml:"operator"`
	Value        string `db:"value" yaml:"value"`
	DisplayOrder int    `db:"display_order" yaml:"order"`
}

// IsGroup reports whether the rule references a child rule set.
func (r Rule) IsGroup() bool {
	return r.RuleType == GroupRuleType
}

// GroupID decodes the child rule set id of a group reference.
func (r Rule) GroupID() (int64, error) {
	return strconv.ParseInt(r.Value, 10, 64)
}

// RuleSet is a persisted group of rules.
type RuleSet struct {
	ID              int64
	Name            string
	Scope           Scope
	IsActive        bool
	IsSubGroup      bool
	LogicalOperator LogicalOperator
	UpdatedAt       time.Time
	Rules           []Rule
}

// RuleSetGraph holds every rule set reachable from a root, keyed by id.
type RuleSetGraph map[int64]*RuleSet

// ResolveRuleSet returns the rule set with the given id.
func (g RuleSetGraph) ResolveRuleSet(id int64) (*RuleSet, bool) {
	rs, ok := g[id]
	return rs, ok
}

// Version returns the most recent UpdatedAt across the graph. A change to any
// nested group therefore changes the version of its root.
func (g RuleSetGraph) Version() time.Time {
	var latest time.Time
	for _, rs := range g {
		if rs.UpdatedAt.After(latest) {
			latest = rs.UpdatedAt
		}
	}
	return latest
}

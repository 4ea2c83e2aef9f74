package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/types"
)

// Document is the YAML import format. Nested groups are written inline and
// stored as sub group rule sets referenced by Group rules:
//
//	rule_sets:
//	  - name: vip-cart
//	    scope: cart
//	    operator: and
//	    rules:
//	      - {type: CartTotal, operator: GreaterThanOrEqual, value: "100"}
//	    groups:
//	      - name: mobile-or-member
//	        operator: or
//	        rules:
//	          - {type: IsMobile, operator: Equal, value: "true"}
type Document struct {
	RuleSets []RuleSetDef `yaml:"rule_sets"`
}

// RuleSetDef is one rule set in an import document.
type RuleSetDef struct {
	Name     string       `yaml:"name"`
	Scope    string       `yaml:"scope"`
	Operator string       `yaml:"operator"`
	Active   *bool        `yaml:"active"`
	Order    int          `yaml:"order"`
	Rules    []types.Rule `yaml:"rules"`
	Groups   []RuleSetDef `yaml:"groups"`
}

// ErrInvalidDocument indicates an import document that cannot be stored.
var ErrInvalidDocument = errors.New("invalid rule set document")

// ParseDocument decodes an import document. Unknown fields are rejected.
func ParseDocument(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Import stores every rule set of the document in one transaction and returns
// the ids of the top-level rule sets in document order.
func (s *Store) Import(ctx context.Context, r io.Reader) ([]int64, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = s.inTx(ctx, func(q *db.Queries) error {
		for i := range doc.RuleSets {
			def := &doc.RuleSets[i]
			scope, err := types.ParseScope(def.Scope)
			if err != nil {
				return fmt.Errorf("%w: rule set %q: %v", ErrInvalidDocument, def.Name, err)
			}
			id, err := s.importRuleSet(ctx, q, def, scope, false)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// importRuleSet stores children before their parent so that the parent's
// Group rules can carry the child ids.
func (s *Store) importRuleSet(ctx context.Context, q *db.Queries, def *RuleSetDef, scope types.Scope, sub bool) (int64, error) {
	if def.Name == "" {
		return 0, fmt.Errorf("%w: rule set without name", ErrInvalidDocument)
	}
	if sub && def.Scope != "" {
		if nested, err := types.ParseScope(def.Scope); err != nil || nested != scope {
			return 0, fmt.Errorf("%w: group %q must share scope %s", ErrInvalidDocument, def.Name, scope)
		}
	}
	op, err := types.ParseLogicalOperator(def.Operator)
	if err != nil {
		return 0, fmt.Errorf("%w: rule set %q: %v", ErrInvalidDocument, def.Name, err)
	}

	rs := &types.RuleSet{
		Name:            def.Name,
		Scope:           scope,
		IsActive:        def.Active == nil || *def.Active,
		IsSubGroup:      sub,
		LogicalOperator: op,
	}

	for _, rule := range def.Rules {
		if rule.RuleType == "" {
			return 0, fmt.Errorf("%w: rule set %q has a rule without type", ErrInvalidDocument, def.Name)
		}
		if rule.IsGroup() {
			return 0, fmt.Errorf("%w: rule set %q: write nested groups under groups", ErrInvalidDocument, def.Name)
		}
		rs.Rules = append(rs.Rules, types.Rule{
			RuleType:     rule.RuleType,
			Operator:     rule.Operator,
			Value:        rule.Value,
			DisplayOrder: rule.DisplayOrder,
		})
	}

	for i := range def.Groups {
		child := &def.Groups[i]
		childID, err := s.importRuleSet(ctx, q, child, scope, true)
		if err != nil {
			return 0, err
		}
		rs.Rules = append(rs.Rules, types.Rule{
			RuleType:     types.GroupRuleType,
			Value:        strconv.FormatInt(childID, 10),
			DisplayOrder: child.Order,
		})
	}

	if err := s.createRuleSet(ctx, q, rs); err != nil {
		return 0, err
	}
	return rs.ID, nil
}

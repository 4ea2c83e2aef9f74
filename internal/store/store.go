// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule definition store.
 *
 * Persists rule sets and rules in the rule_sets and rules tables through the
 * named queries of internal/core/db.
 *
 * Versioning: every write to a rule set (including its rules) bumps its
 * updated_at. Compiled trees are cached per root under the latest updated_at
 * of the whole graph (types.RuleSetGraph.Version), so any nested change
 * invalidates the root. Deleting a rule set bumps the rule sets that still
 * reference it, since the deleted row no longer contributes to any graph.
 *
 * Timestamps are written as RFC 3339 text in UTC, which both SQLite (TEXT)
 * and PostgreSQL (TIMESTAMPTZ) accept.
 */

// Store reads and writes rule definitions.
type Store struct {
	db      *sqlx.DB
	queries *db.Queries
	now     func() time.Time
}

// New creates a store on an open, migrated database.
func New(conn *sqlx.DB) (*Store, error) {
	queries, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &Store{db: conn, queries: queries, now: time.Now}, nil
}

type ruleSetRow struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	Scope           string `db:"scope"`
	IsActive        bool   `db:"is_active"`
	IsSubGroup      bool   `db:"is_sub_group"`
	LogicalOperator string `db:"logical_operator"`
	UpdatedAt       string `db:"updated_at"`
}

func (r ruleSetRow) toRuleSet() (*types.RuleSet, error) {
	scope, err := types.ParseScope(r.Scope)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: %w", r.ID, err)
	}
	op, err := types.ParseLogicalOperator(r.LogicalOperator)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: %w", r.ID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: invalid updated_at %q: %w", r.ID, r.UpdatedAt, err)
	}
	return &types.RuleSet{
		ID:              r.ID,
		Name:            r.Name,
		Scope:           scope,
		IsActive:        r.IsActive,
		IsSubGroup:      r.IsSubGroup,
		LogicalOperator: op,
		UpdatedAt:       updatedAt,
	}, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// GetRuleSet returns a rule set with its rules.
func (s *Store) GetRuleSet(ctx context.Context, id int64) (*types.RuleSet, error) {
	return getRuleSet(ctx, s.queries, id)
}

func getRuleSet(ctx context.Context, q *db.Queries, id int64) (*types.RuleSet, error) {
	var row ruleSetRow
	if err := q.Get(ctx, "get-rule-set", &row, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule set %d: %w", id, types.ErrRuleSetNotFound)
		}
		return nil, fmt.Errorf("get rule set %d: %w", id, err)
	}
	rs, err := row.toRuleSet()
	if err != nil {
		return nil, err
	}

	if err := q.Select(ctx, "list-rules", &rs.Rules, id); err != nil {
		return nil, fmt.Errorf("list rules of %d: %w", id, err)
	}
	return rs, nil
}

// ListRules returns the rules of a rule set in display order.
func (s *Store) ListRules(ctx context.Context, ruleSetID int64) ([]types.Rule, error) {
	var rules []types.Rule
	if err := s.queries.Select(ctx, "list-rules", &rules, ruleSetID); err != nil {
		return nil, fmt.Errorf("list rules of %d: %w", ruleSetID, err)
	}
	return rules, nil
}

// ListRootRuleSets returns the top-level rule sets of scope, without rules.
func (s *Store) ListRootRuleSets(ctx context.Context, scope types.Scope) ([]*types.RuleSet, error) {
	var rows []ruleSetRow
	if err := s.queries.Select(ctx, "list-root-rule-sets", &rows, scope.String(), false); err != nil {
		return nil, fmt.Errorf("list %s rule sets: %w", scope, err)
	}

	sets := make([]*types.RuleSet, 0, len(rows))
	for _, row := range rows {
		rs, err := row.toRuleSet()
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return sets, nil
}

// LoadGraph loads rootID and every rule set reachable through group rules,
// breadth first. Cycles are loaded as-is and reported by the compiler; so are
// group references to missing rule sets, which are left out of the graph.
func (s *Store) LoadGraph(ctx context.Context, rootID int64) (types.RuleSetGraph, error) {
	root, err := s.GetRuleSet(ctx, rootID)
	if err != nil {
		return nil, err
	}

	graph := types.RuleSetGraph{rootID: root}
	queue := []*types.RuleSet{root}
	for len(queue) > 0 {
		rs := queue[0]
		queue = queue[1:]

		for _, rule := range rs.Rules {
			if !rule.IsGroup() {
				continue
			}
			childID, err := rule.GroupID()
			if err != nil {
				continue
			}
			if _, seen := graph[childID]; seen {
				continue
			}
			child, err := s.GetRuleSet(ctx, childID)
			if errors.Is(err, types.ErrRuleSetNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			graph[childID] = child
			queue = append(queue, child)
		}
	}
	return graph, nil
}

// CreateRuleSet inserts rs and its rules in one transaction and fills in the
// generated ids.
func (s *Store) CreateRuleSet(ctx context.Context, rs *types.RuleSet) error {
	return s.inTx(ctx, func(q *db.Queries) error {
		return s.createRuleSet(ctx, q, rs)
	})
}

func (s *Store) createRuleSet(ctx context.Context, q *db.Queries, rs *types.RuleSet) error {
	now := s.timestamp()
	if err := q.Get(ctx, "create-rule-set", &rs.ID,
		rs.Name, rs.Scope.String(), rs.IsActive, rs.IsSubGroup, rs.LogicalOperator.String(), now,
	); err != nil {
		return fmt.Errorf("create rule set %q: %w", rs.Name, err)
	}
	rs.UpdatedAt, _ = time.Parse(time.RFC3339Nano, now)

	for i := range rs.Rules {
		rs.Rules[i].RuleSetID = rs.ID
		if err := insertRule(ctx, q, &rs.Rules[i]); err != nil {
			return err
		}
	}
	return nil
}

// AddRule appends a rule to an existing rule set and bumps its version.
func (s *Store) AddRule(ctx context.Context, rule *types.Rule) error {
	return s.inTx(ctx, func(q *db.Queries) error {
		if err := insertRule(ctx, q, rule); err != nil {
			return err
		}
		return touch(ctx, q, rule.RuleSetID, s.timestamp())
	})
}

// DeleteRule removes a rule and bumps the version of its rule set.
func (s *Store) DeleteRule(ctx context.Context, ruleSetID, ruleID int64) error {
	return s.inTx(ctx, func(q *db.Queries) error {
		if _, err := q.Exec(ctx, "delete-rule", ruleID); err != nil {
			return fmt.Errorf("delete rule %d: %w", ruleID, err)
		}
		return touch(ctx, q, ruleSetID, s.timestamp())
	})
}

// SetActive enables or disables a rule set.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.queries.Exec(ctx, "set-rule-set-active", active, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set active on %d: %w", id, err)
	}
	return expectRow(res, id)
}

// DeleteRuleSet removes a rule set and its rules. Rule sets that reference it
// through a Group rule are touched in the same transaction, so every graph
// that contained it gets a new version.
func (s *Store) DeleteRuleSet(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(q *db.Queries) error {
		if _, err := q.Exec(ctx, "touch-group-parents",
			s.timestamp(), types.GroupRuleType, strconv.FormatInt(id, 10),
		); err != nil {
			return fmt.Errorf("touch parents of rule set %d: %w", id, err)
		}
		res, err := q.Exec(ctx, "delete-rule-set", id)
		if err != nil {
			return fmt.Errorf("delete rule set %d: %w", id, err)
		}
		return expectRow(res, id)
	})
}

func insertRule(ctx context.Context, q *db.Queries, rule *types.Rule) error {
	if err := q.Get(ctx, "add-rule", &rule.ID,
		rule.RuleSetID, rule.RuleType, rule.Operator, rule.Value, rule.DisplayOrder,
	); err != nil {
		return fmt.Errorf("add %s rule to %d: %w", rule.RuleType, rule.RuleSetID, err)
	}
	return nil
}

func touch(ctx context.Context, q *db.Queries, id int64, now string) error {
	res, err := q.Exec(ctx, "touch-rule-set", now, id)
	if err != nil {
		return fmt.Errorf("touch rule set %d: %w", id, err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule set %d: %w", id, types.ErrRuleSetNotFound)
	}
	return nil
}

// inTx runs fn with queries bound to a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

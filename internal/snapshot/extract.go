// Package snapshot builds per-account compliance snapshots from assessment runs.
package snapshot

import (
	"fmt"

	"github.com/yairfalse/newfindings/internal/dome9"
	"github.com/yairfalse/newfindings/pkg/finding"
)

// ConsistencyError reports an entity reference that does not resolve into the
// run's entity lists. Missing is set when the reference had no index at all.
type ConsistencyError struct {
	RuleID     string
	AssetID    string
	EntityType string
	Index      int
	Available  int
	Missing    bool
}

func (e *ConsistencyError) Error() string {
	if e.Missing {
		return fmt.Sprintf("rule %s: entity %s of type %s has no entity index",
			e.RuleID, e.AssetID, e.EntityType)
	}
	return fmt.Sprintf("rule %s: entity %s references %s[%d] but only %d %s entities exist",
		e.RuleID, e.AssetID, e.EntityType, e.Index, e.Available, e.EntityType)
}

// Extract turns the tests of one assessment run into rule violations, in test order.
// Rules with a zero non-compliant count are omitted. Entity references with a
// negative index are skipped; a reference without an index is an error.
func Extract(tests []dome9.RuleTest, entities map[string][]dome9.TestEntity) ([]*finding.RuleViolation, error) {
	var rules []*finding.RuleViolation
	for _, test := range tests {
		if test.NonComplyingCount == 0 {
			continue
		}

		rule := &finding.RuleViolation{
			RuleID:      test.Rule.RuleID,
			Name:        test.Rule.Name,
			Severity:    test.Rule.Severity,
			Remediation: test.Rule.Remediation,
		}
		if err := extractEntities(rule, test.EntityResults, entities); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func extractEntities(rule *finding.RuleViolation, results []dome9.EntityResult, entities map[string][]dome9.TestEntity) error {
	for _, result := range results {
		obj := result.TestObj
		idx, ok := obj.Index()
		if !ok {
			return &ConsistencyError{
				RuleID:     rule.RuleID,
				AssetID:    obj.ID,
				EntityType: obj.EntityType,
				Index:      -1,
				Available:  len(entities[obj.EntityType]),
				Missing:    true,
			}
		}
		if idx < 0 {
			continue
		}

		list := entities[obj.EntityType]
		if idx >= len(list) {
			return &ConsistencyError{
				RuleID:     rule.RuleID,
				AssetID:    obj.ID,
				EntityType: obj.EntityType,
				Index:      idx,
				Available:  len(list),
			}
		}

		rule.Entities.Add(finding.Entity{
			AssetID: obj.ID,
			Type:    obj.EntityType,
			Name:    list[idx].Name,
		})
	}
	return nil
}

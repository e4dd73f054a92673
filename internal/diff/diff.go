// Package diff computes the compliance findings that are new between two snapshots.
package diff

import (
	"github.com/yairfalse/newfindings/pkg/finding"
)

// Compute returns, for each requested account of current, the rules and
// entities violated in current but not in baseline.
//
// For a rule violated in both snapshots only entities missing from the
// baseline rule are reported. An entity is known when the baseline holds one
// with the same name, type and link; a renamed asset is reported as new.
// A rule without indexed entities is reported only when the baseline does not
// violate it at all.
func Compute(baseline, current *finding.Snapshot, accounts []string) finding.DiffResult {
	result := finding.DiffResult{}

	seen := make(map[string]bool, len(accounts))
	for _, id := range accounts {
		if seen[id] {
			continue
		}
		seen[id] = true

		curr, ok := current.Account(id)
		if !ok {
			continue
		}
		prev, _ := baseline.Account(id)
		diffAccount(result, prev, curr)
	}

	return result
}

func diffAccount(result finding.DiffResult, prev, curr *finding.AccountSnapshot) {
	for _, rule := range curr.Rules() {
		var before *finding.RuleViolation
		if prev != nil {
			before, _ = prev.Rule(rule.RuleID)
		}

		if rule.Entities.Len() == 0 {
			if before == nil {
				result.Bucket(curr.Account, rule)
			}
			continue
		}

		added := newEntities(curr.Account.ID, before, rule)
		if len(added) == 0 {
			continue
		}
		bucket := result.Bucket(curr.Account, rule)
		bucket.Entities = append(bucket.Entities, added...)
	}
}

// newEntities returns the links of rule's entities absent from before,
// in current order. A nil before yields every entity.
func newEntities(accountID string, before, rule *finding.RuleViolation) []finding.EntityLink {
	known := make(map[finding.EntityLink]bool)
	if before != nil {
		for _, e := range before.Entities.All() {
			known[finding.Link(accountID, e)] = true
		}
	}

	var added []finding.EntityLink
	for _, e := range rule.Entities.All() {
		link := finding.Link(accountID, e)
		if !known[link] {
			added = append(added, link)
		}
	}
	return added
}

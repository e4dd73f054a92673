// Package filter drops excluded severities and entity types from new findings.
package filter

import (
	"strings"

	"github.com/yairfalse/newfindings/pkg/finding"
)

// Filter controls which findings reach the report.
type Filter struct {
	excludeTypes      map[string]bool
	excludeSeverities map[string]bool
}

// New creates a Filter. Severities match case-insensitively, entity types
// exactly.
func New(excludeTypes, excludeSeverities []string) *Filter {
	types := make(map[string]bool, len(excludeTypes))
	for _, t := range excludeTypes {
		types[t] = true
	}
	severities := make(map[string]bool, len(excludeSeverities))
	for _, s := range excludeSeverities {
		severities[strings.ToLower(s)] = true
	}

	return &Filter{
		excludeTypes:      types,
		excludeSeverities: severities,
	}
}

// ShouldIncludeSeverity returns true if findings of severity are reported.
func (f *Filter) ShouldIncludeSeverity(severity string) bool {
	return !f.excludeSeverities[strings.ToLower(severity)]
}

// ShouldIncludeType returns true if entities of the given type are reported.
func (f *Filter) ShouldIncludeType(typ string) bool {
	return !f.excludeTypes[typ]
}

// Apply returns the findings that pass the filter. A rule whose entities are
// all excluded is dropped; a rule that never had entities is kept.
// Accounts left without findings are dropped. A nil Filter keeps everything.
func (f *Filter) Apply(result finding.DiffResult) finding.DiffResult {
	if f == nil || f.IsEmpty() {
		return result
	}

	filtered := make(finding.DiffResult, len(result))
	for id, af := range result {
		out := &finding.AccountFindings{
			Account:    af.Account,
			Severities: make(map[string]map[string]*finding.RuleFindings),
		}
		for severity, rules := range af.Severities {
			if !f.ShouldIncludeSeverity(severity) {
				continue
			}
			kept := make(map[string]*finding.RuleFindings, len(rules))
			for name, rf := range rules {
				if r, ok := f.filterRule(rf); ok {
					kept[name] = r
				}
			}
			if len(kept) > 0 {
				out.Severities[severity] = kept
			}
		}
		if len(out.Severities) > 0 {
			filtered[id] = out
		}
	}
	return filtered
}

func (f *Filter) filterRule(rf *finding.RuleFindings) (*finding.RuleFindings, bool) {
	if len(rf.Entities) == 0 {
		return rf, true
	}

	entities := make([]finding.EntityLink, 0, len(rf.Entities))
	for _, e := range rf.Entities {
		if f.ShouldIncludeType(e.Type) {
			entities = append(entities, e)
		}
	}
	if len(entities) == 0 {
		return nil, false
	}
	return &finding.RuleFindings{Remediation: rf.Remediation, Entities: entities}, true
}

// IsEmpty returns true if no filters are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.excludeTypes) == 0 && len(f.excludeSeverities) == 0
}

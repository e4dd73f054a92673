// Package report renders new findings for people: console transcripts, HTML
// tables and report emails.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/yairfalse/newfindings/pkg/finding"
)

// Document is a diff result laid out in reporting order.
type Document struct {
	Assessment string           `json:"assessment"`
	Since      time.Time        `json:"since"`
	Accounts   []AccountSection `json:"accounts"`
}

// AccountSection holds one requested account's findings.
type AccountSection struct {
	Account    finding.Account   `json:"account"`
	Severities []SeveritySection `json:"severities"`
}

// SeveritySection holds the rules of one severity, sorted by name.
type SeveritySection struct {
	Severity string        `json:"severity"`
	Rules    []RuleSection `json:"rules"`
}

// RuleSection is one rule with its newly flagged entities.
type RuleSection struct {
	Name        string               `json:"name"`
	Remediation string               `json:"remediation"`
	Entities    []finding.EntityLink `json:"entities"`
}

// Empty reports whether the section has no findings.
func (a AccountSection) Empty() bool {
	return len(a.Severities) == 0
}

// NewDocument lays out result for every requested account, in request order.
// A repeated account id gets one section.
// Account details come from the current snapshot.
func NewDocument(assessment string, since time.Time, current *finding.Snapshot, result finding.DiffResult, accounts []string) Document {
	doc := Document{
		Assessment: assessment,
		Since:      since,
		Accounts:   make([]AccountSection, 0, len(accounts)),
	}

	seen := make(map[string]bool, len(accounts))
	for _, id := range accounts {
		if seen[id] {
			continue
		}
		seen[id] = true

		section := AccountSection{Account: finding.Account{ID: id}}
		if as, ok := current.Account(id); ok {
			section.Account = as.Account
		}
		if af, ok := result[id]; ok {
			section.Severities = severitySections(af)
		}
		doc.Accounts = append(doc.Accounts, section)
	}

	return doc
}

func severitySections(af *finding.AccountFindings) []SeveritySection {
	severities := make([]string, 0, len(af.Severities))
	for s := range af.Severities {
		severities = append(severities, s)
	}
	SortSeverities(severities)

	sections := make([]SeveritySection, 0, len(severities))
	for _, s := range severities {
		rules := af.Severities[s]
		names := make([]string, 0, len(rules))
		for name := range rules {
			names = append(names, name)
		}
		sort.Strings(names)

		section := SeveritySection{Severity: s, Rules: make([]RuleSection, 0, len(names))}
		for _, name := range names {
			rf := rules[name]
			section.Rules = append(section.Rules, RuleSection{
				Name:        name,
				Remediation: rf.Remediation,
				Entities:    rf.Entities,
			})
		}
		sections = append(sections, section)
	}
	return sections
}

var severityRank = map[string]int{
	"critical":      0,
	"high":          1,
	"medium":        2,
	"low":           3,
	"informational": 4,
	"info":          4,
}

// SortSeverities orders labels from critical to informational; unknown labels
// follow, alphabetically.
func SortSeverities(labels []string) {
	rank := func(s string) int {
		if r, ok := severityRank[strings.ToLower(s)]; ok {
			return r
		}
		return len(severityRank)
	}
	sort.SliceStable(labels, func(i, j int) bool {
		ri, rj := rank(labels[i]), rank(labels[j])
		if ri != rj {
			return ri < rj
		}
		return labels[i] < labels[j]
	})
}

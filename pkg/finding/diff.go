package finding

// EntityLink is a newly flagged entity with a link into the Dome9 console.
type EntityLink struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// RuleFindings holds the new findings of one rule.
// Entities is empty for a rule that is not tied to an indexed asset.
type RuleFindings struct {
	Remediation string       `json:"remediation"`
	Entities    []EntityLink `json:"entities"`
}

// AccountFindings groups an account's new findings by severity, then rule name.
type AccountFindings struct {
	Account    Account                             `json:"account"`
	Severities map[string]map[string]*RuleFindings `json:"severities"`
}

// Count returns the number of rule buckets across all severities.
func (a *AccountFindings) Count() int {
	n := 0
	for _, rules := range a.Severities {
		n += len(rules)
	}
	return n
}

// DiffResult maps account id to the account's new findings.
type DiffResult map[string]*AccountFindings

// Bucket returns the findings bucket for the rule, creating it when missing.
func (d DiffResult) Bucket(account Account, rule *RuleViolation) *RuleFindings {
	af, ok := d[account.ID]
	if !ok {
		af = &AccountFindings{
			Account:    account,
			Severities: make(map[string]map[string]*RuleFindings),
		}
		d[account.ID] = af
	}
	rules, ok := af.Severities[rule.Severity]
	if !ok {
		rules = make(map[string]*RuleFindings)
		af.Severities[rule.Severity] = rules
	}
	rf, ok := rules[rule.Name]
	if !ok {
		rf = &RuleFindings{
			Remediation: rule.Remediation,
			Entities:    []EntityLink{},
		}
		rules[rule.Name] = rf
	}
	return rf
}

// Package finding defines the compliance finding model for newfindings.
package finding

import "time"

// Account identifies a monitored cloud account.
// Name and ExternalID are only known once an assessment run was found for it.
type Account struct {
	ID         string `json:"id"`          // Dome9 cloud account id
	Name       string `json:"name"`        // Display name
	ExternalID string `json:"external_id"` // Provider-level id (e.g. AWS account number)
}

// Entity is a concrete cloud asset referenced by a failing rule test.
type Entity struct {
	AssetID string `json:"asset_id"`
	Type    string `json:"type"` // e.g. "securityGroup", "kms", "ec2"
	Name    string `json:"name"`
}

// EntitySet is an insertion-ordered set of entities keyed by asset id.
type EntitySet struct {
	order []string
	byID  map[string]Entity
}

// Add inserts e, replacing any entity with the same asset id in place.
func (s *EntitySet) Add(e Entity) {
	if s.byID == nil {
		s.byID = make(map[string]Entity)
	}
	if _, exists := s.byID[e.AssetID]; !exists {
		s.order = append(s.order, e.AssetID)
	}
	s.byID[e.AssetID] = e
}

// Get returns the entity with the given asset id.
func (s *EntitySet) Get(assetID string) (Entity, bool) {
	e, ok := s.byID[assetID]
	return e, ok
}

// Len returns the number of entities in the set.
func (s *EntitySet) Len() int {
	return len(s.order)
}

// All returns the entities in insertion order.
func (s *EntitySet) All() []Entity {
	out := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// RuleViolation is a rule with a non-zero non-compliant count in one assessment run.
type RuleViolation struct {
	RuleID      string
	Name        string
	Severity    string // opaque label from the upstream API
	Remediation string
	Entities    EntitySet
}

// AccountSnapshot holds the violated rules of one account at one point in time.
type AccountSnapshot struct {
	Account  Account
	Resolved bool // an assessment run was found for the account

	order []string
	rules map[string]*RuleViolation
}

// NewAccountSnapshot returns an empty, unresolved snapshot for the account id.
func NewAccountSnapshot(id string) *AccountSnapshot {
	return &AccountSnapshot{
		Account: Account{ID: id},
		rules:   make(map[string]*RuleViolation),
	}
}

// SetRules replaces the account's rule set, keeping the order of rules.
func (a *AccountSnapshot) SetRules(rules []*RuleViolation) {
	a.order = a.order[:0]
	a.rules = make(map[string]*RuleViolation, len(rules))
	for _, r := range rules {
		if _, exists := a.rules[r.RuleID]; !exists {
			a.order = append(a.order, r.RuleID)
		}
		a.rules[r.RuleID] = r
	}
}

// Rule returns the violation for the rule id, if present.
func (a *AccountSnapshot) Rule(ruleID string) (*RuleViolation, bool) {
	r, ok := a.rules[ruleID]
	return r, ok
}

// Rules returns the violations in the order they were extracted.
func (a *AccountSnapshot) Rules() []*RuleViolation {
	out := make([]*RuleViolation, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.rules[id])
	}
	return out
}

// Snapshot is the set of violated rules for all requested accounts on one day.
type Snapshot struct {
	Assessment string
	Day        time.Time
	Accounts   map[string]*AccountSnapshot
}

// NewSnapshot creates a snapshot with an empty entry for every account id.
func NewSnapshot(assessment string, day time.Time, accountIDs []string) *Snapshot {
	s := &Snapshot{
		Assessment: assessment,
		Day:        day,
		Accounts:   make(map[string]*AccountSnapshot, len(accountIDs)),
	}
	for _, id := range accountIDs {
		s.Accounts[id] = NewAccountSnapshot(id)
	}
	return s
}

// Account returns the snapshot entry for the account id.
func (s *Snapshot) Account(id string) (*AccountSnapshot, bool) {
	if s == nil {
		return nil, false
	}
	a, ok := s.Accounts[id]
	return a, ok
}

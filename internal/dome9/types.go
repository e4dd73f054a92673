package dome9

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const (
	dayStartLayout = "2006-01-02T00:00:00Z"
	dayEndLayout   = "2006-01-02T23:59:59Z"
)

// HistoryQuery is the body of an assessment history search.
// A new value is built for every page request.
type HistoryQuery struct {
	Sorting      Sorting   `json:"sorting"`
	CreationTime TimeRange `json:"creationTime"`
	PageNumber   int       `json:"pageNumber"`
}

// Sorting orders history results.
type Sorting struct {
	FieldName string `json:"fieldName"`
	Direction int    `json:"direction"`
}

// TimeRange bounds history results by creation time.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewHistoryQuery returns the query for one page of runs created during the
// UTC day containing day, newest first.
func NewHistoryQuery(day time.Time, page int) HistoryQuery {
	day = day.UTC()
	return HistoryQuery{
		Sorting: Sorting{
			FieldName: "createdTime",
			Direction: -1,
		},
		CreationTime: TimeRange{
			From: day.Format(dayStartLayout),
			To:   day.Format(dayEndLayout),
		},
		PageNumber: page,
	}
}

// HistoryPage is one page of assessment history.
type HistoryPage struct {
	Results []HistoryEntry `json:"results"`
	// PageSize is the bound the API reports for pagination; no page beyond it is requested.
	PageSize          int `json:"pageSize"`
	TotalResultsCount int `json:"totalResultsCount"`
}

// HistoryEntry is a summary of one assessment run.
type HistoryEntry struct {
	ID      RunID             `json:"id"`
	Request AssessmentRequest `json:"request"`
}

// AssessmentRequest describes what an assessment run evaluated.
type AssessmentRequest struct {
	Name                   string `json:"name"`
	Dome9CloudAccountID    string `json:"dome9CloudAccountId"`
	ExternalCloudAccountID string `json:"externalCloudAccountId"`
}

// AssessmentResult is the full detail of one assessment run.
type AssessmentResult struct {
	ID           RunID                   `json:"id"`
	Tests        []RuleTest              `json:"tests"`
	TestEntities map[string][]TestEntity `json:"testEntities"`
}

// RuleTest is the result of evaluating one rule.
type RuleTest struct {
	NonComplyingCount int            `json:"nonComplyingCount"`
	TestedCount       int            `json:"testedCount"`
	Rule              Rule           `json:"rule"`
	EntityResults     []EntityResult `json:"entityResults"`
}

// Rule is a compliance rule definition.
type Rule struct {
	RuleID      string `json:"ruleId"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Remediation string `json:"remediation"`
}

// EntityResult is the outcome of a rule for one tested object.
type EntityResult struct {
	IsValid bool       `json:"isValid"`
	TestObj TestObject `json:"testObj"`
}

// TestObject references an entry of AssessmentResult.TestEntities.
// EntityIndex is nil when the API omitted it.
type TestObject struct {
	ID          string       `json:"id"`
	EntityType  string       `json:"entityType"`
	EntityIndex *EntityIndex `json:"entityIndex"`
}

// Index returns the entity index and whether the object carried one.
func (o TestObject) Index() (int, bool) {
	if o.EntityIndex == nil {
		return 0, false
	}
	return int(*o.EntityIndex), true
}

// TestEntity is one tested asset.
type TestEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CloudAccount is a Dome9 cloud account.
type CloudAccount struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	ExternalAccountNumber string `json:"externalAccountNumber"`
}

// RunID identifies an assessment run. The API sends it as a number or a string.
type RunID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *RunID) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "null" {
		s = ""
	}
	*id = RunID(s)
	return nil
}

// EntityIndex is a position in a TestEntities list; -1 means no concrete asset.
type EntityIndex int

// NewEntityIndex returns a pointer to i.
func NewEntityIndex(i int) *EntityIndex {
	idx := EntityIndex(i)
	return &idx
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (i *EntityIndex) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*i = -1
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("entity index %q: %w", s, err)
	}
	*i = EntityIndex(n)
	return nil
}

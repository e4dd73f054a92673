package snapshot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/newfindings/internal/dome9"
)

func ruleTest(id string, nonComplying int, objs ...dome9.TestObject) dome9.RuleTest {
	t := dome9.RuleTest{
		NonComplyingCount: nonComplying,
		Rule: dome9.Rule{
			RuleID:      id,
			Name:        "name " + id,
			Severity:    "High",
			Remediation: "fix " + id,
		},
	}
	for _, o := range objs {
		t.EntityResults = append(t.EntityResults, dome9.EntityResult{TestObj: o})
	}
	return t
}

func obj(id, typ string, idx int) dome9.TestObject {
	return dome9.TestObject{ID: id, EntityType: typ, EntityIndex: dome9.NewEntityIndex(idx)}
}

var testEntities = map[string][]dome9.TestEntity{
	"securityGroup": {{Name: "default"}, {Name: "web"}},
	"kms":           {{Name: "key"}},
}

func TestExtract_SkipsCompliantRules(t *testing.T) {
	rules, err := Extract([]dome9.RuleTest{ruleTest("R1", 0, obj("sg-1", "securityGroup", 0))}, testEntities)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestExtract_EmitsViolation(t *testing.T) {
	tests := []dome9.RuleTest{
		ruleTest("R1", 2,
			obj("sg-2", "securityGroup", 1),
			obj("us-east-1", "region", -1),
			obj("key-1", "kms", 0),
		),
	}

	rules, err := Extract(tests, testEntities)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "R1", r.RuleID)
	assert.Equal(t, "name R1", r.Name)
	assert.Equal(t, "High", r.Severity)
	assert.Equal(t, "fix R1", r.Remediation)

	entities := r.Entities.All()
	require.Len(t, entities, 2)
	assert.Equal(t, "sg-2", entities[0].AssetID)
	assert.Equal(t, "web", entities[0].Name)
	assert.Equal(t, "securityGroup", entities[0].Type)
	assert.Equal(t, "key-1", entities[1].AssetID)
	assert.Equal(t, "key", entities[1].Name)
}

func TestExtract_RuleWithoutIndexedEntities(t *testing.T) {
	rules, err := Extract([]dome9.RuleTest{ruleTest("R1", 1, obj("acc", "region", -1))}, testEntities)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 0, rules[0].Entities.Len())
}

func TestExtract_KeepsTestOrder(t *testing.T) {
	rules, err := Extract([]dome9.RuleTest{
		ruleTest("R2", 1),
		ruleTest("R1", 1),
		ruleTest("R3", 0),
	}, testEntities)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "R2", rules[0].RuleID)
	assert.Equal(t, "R1", rules[1].RuleID)
}

func TestExtract_OutOfRangeIndex(t *testing.T) {
	_, err := Extract([]dome9.RuleTest{ruleTest("R1", 1, obj("sg-9", "securityGroup", 5))}, testEntities)
	require.Error(t, err)

	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "R1", cerr.RuleID)
	assert.Equal(t, 5, cerr.Index)
	assert.Equal(t, 2, cerr.Available)
}

func TestExtract_UnknownEntityType(t *testing.T) {
	_, err := Extract([]dome9.RuleTest{ruleTest("R1", 1, obj("x", "lambda", 0))}, testEntities)

	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "lambda", cerr.EntityType)
	assert.Equal(t, 0, cerr.Available)
}

func TestExtract_Deterministic(t *testing.T) {
	tests := []dome9.RuleTest{ruleTest("R1", 1, obj("sg-1", "securityGroup", 0), obj("sg-2", "securityGroup", 1))}
	a, err := Extract(tests, testEntities)
	require.NoError(t, err)
	b, err := Extract(tests, testEntities)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_MissingEntityIndex(t *testing.T) {
	test := ruleTest("R1", 1)
	test.EntityResults = append(test.EntityResults, dome9.EntityResult{
		TestObj: dome9.TestObject{ID: "i-1", EntityType: "securityGroup"},
	})

	_, err := Extract([]dome9.RuleTest{test}, testEntities)

	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Missing)
	assert.Equal(t, "i-1", cerr.AssetID)
	assert.Contains(t, err.Error(), "no entity index")
}

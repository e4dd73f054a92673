package finding

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestAssetURL_SecurityGroup(t *testing.T) {
	url := AssetURL("securityGroup", "123", "sg-1")
	assert.Equal(t, "https://secure.dome9.com/v2/security-group/aws/sg-1", url)
}

func TestAssetURL_NoConsolePage(t *testing.T) {
	for _, typ := range []string{"iamPolicy", "region", "subnet", "iam", "routeTable", "ecsTask"} {
		assert.Equal(t, NoURL, AssetURL(typ, "123", "x"), typ)
	}
}

func TestAssetURL_CanonicalLabel(t *testing.T) {
	url := AssetURL("kms", "123", "key-1")
	assert.Equal(t,
		"https://secure.dome9.com/v2/protected-asset/generic?cloudAccountId=123&assetType=KMS&assetId=key-1",
		url)
}

func TestAssetURL_GenericType(t *testing.T) {
	url := AssetURL("customThing", "123", "x1")
	assert.Equal(t,
		"https://secure.dome9.com/v2/protected-asset/generic?cloudAccountId=123&assetType=CustomThing&assetId=x1",
		url)
}

func TestAssetTypeLabel(t *testing.T) {
	assert.Equal(t, "Ec2", AssetTypeLabel("ec2"))
	assert.Equal(t, "ELB", AssetTypeLabel("elb"))
	assert.Equal(t, "LambdaFunction", AssetTypeLabel("lambdaFunction"))
	assert.Equal(t, "", AssetTypeLabel(""))
	assert.Equal(t, "Élan", AssetTypeLabel("élan"))
	assert.True(t, utf8.ValidString(AssetTypeLabel("ωmega")))
	assert.Equal(t, "Ωmega", AssetTypeLabel("ωmega"))
}

func TestLink(t *testing.T) {
	link := Link("123", Entity{AssetID: "i-1", Type: "ec2", Name: "web"})
	assert.Equal(t, "web", link.Name)
	assert.Equal(t, "ec2", link.Type)
	assert.Contains(t, link.URL, "assetType=Ec2&assetId=i-1")
}

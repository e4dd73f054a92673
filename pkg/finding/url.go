package finding

import (
	"unicode"
	"unicode/utf8"
)

const (
	// NoURL is the link for asset types without a console page.
	NoURL = "N/A"

	genericAssetURL  = "https://secure.dome9.com/v2/protected-asset/generic?"
	securityGroupURL = "https://secure.dome9.com/v2/security-group/aws/"
)

var typesWithoutURL = map[string]bool{
	"iamPolicy":  true,
	"region":     true,
	"subnet":     true,
	"iam":        true,
	"routeTable": true,
	"ecsTask":    true,
}

var assetTypeLabels = map[string]string{
	"kms": "KMS",
	"rds": "RDS",
	"vpc": "VPC",
	"efs": "EFS",
	"elb": "ELB",
}

// AssetURL returns the console link for an asset of the given type.
func AssetURL(assetType, accountID, assetID string) string {
	if typesWithoutURL[assetType] {
		return NoURL
	}
	if assetType == "securityGroup" {
		return securityGroupURL + assetID
	}
	return genericAssetURL +
		"cloudAccountId=" + accountID +
		"&assetType=" + AssetTypeLabel(assetType) +
		"&assetId=" + assetID
}

// AssetTypeLabel returns the console's label for an asset type: a canonical
// upper-case label for known types, otherwise the type with its first letter
// capitalized.
func AssetTypeLabel(assetType string) string {
	if label, ok := assetTypeLabels[assetType]; ok {
		return label
	}
	r, size := utf8.DecodeRuneInString(assetType)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + assetType[size:]
}

// Link projects an entity of the given account into its reported form.
func Link(accountID string, e Entity) EntityLink {
	return EntityLink{
		Name: e.Name,
		Type: e.Type,
		URL:  AssetURL(e.Type, accountID, e.AssetID),
	}
}

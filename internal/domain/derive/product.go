package derive

import (
	"fmt"
	"strings"
)

// Inputs used when a product field is missing from the record.
const (
	DefaultPackageType = "single"
	DefaultUserBucket  = "5"
	DefaultLicenseType = "Standard"
)

var userBuckets = map[string]string{ //nolint:gochecknoglobals
	"unlimited": "1-5",
	"5":         "1-5",
	"20":        "6-20",
	"50":        "21-50",
	"100":       "51-100",
	"250":       "101-250",
	"500":       "251-500",
	"1000":      "501-1000",
	"2500":      "1001-2500",
}

// DetermineCategory maps an offer title to a category: "pro" anywhere means
// Certified, everything else is Standard.
func DetermineCategory(offerTitle string) string {
	title := strings.ToLower(offerTitle)
	switch {
	case strings.Contains(title, "pro"):
		return "Certified"
	case strings.Contains(title, "standard"):
		return "Standard"
	default:
		return "Standard"
	}
}

// CategoryDisplay renders the raw category values used upstream.
func CategoryDisplay(category string) string {
	switch strings.ToLower(category) {
	case "certified":
		return "Certified"
	case "uncertified":
		return "Standard"
	default:
		return category
	}
}

// PackageDisplay renders a raw package type.
func PackageDisplay(packageType string) string {
	switch strings.ToLower(packageType) {
	case "single", "generated":
		return "Single"
	case "suite":
		return "Suite"
	default:
		return packageType
	}
}

// UserBucket maps a raw user count or keyword to its bucket label. The
// lookup is case-sensitive: only the lower-case "unlimited" is a keyword.
func UserBucket(users string) string {
	if b, ok := userBuckets[users]; ok {
		return b
	}
	return users
}

// GenerateProductName composes the catalog product name.
func GenerateProductName(category, packageType, users, licenseType string) string {
	return fmt.Sprintf("%s - %s License - For %s - %s users",
		CategoryDisplay(category), PackageDisplay(packageType), licenseType, UserBucket(users))
}

// VisualPurchased is the offer title, or "<Package> - <Category>" without one.
func VisualPurchased(category, packageType, offerTitle string) string {
	if offerTitle != "" {
		return offerTitle
	}
	return PackageDisplay(packageType) + " - " + CategoryDisplay(category)
}

// Package derive computes fields that are not plain transformations:
// domain, company and country inference, product and deal naming, closing
// dates and catalog lookups.
package derive

import (
	"strings"
	"time"

	"github.com/okian/crmflow/internal/domain/model"
)

const closingWindow = 30 * 24 * time.Hour

// productInputs trigger product synthesis when any of them is present.
var productInputs = []string{"category", "offer_title", "package_type", "license_type", "users"} //nolint:gochecknoglobals

// Engine derives fields against a fixed catalog.
type Engine struct {
	catalog *Catalog
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// New returns an Engine using the built-in catalog unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog used for item id lookups.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Derive returns a copy of rec extended with derived fields. A derived value
// is only written when the field is unset, so extracted values survive.
func (e *Engine) Derive(rec model.Record, now time.Time) model.Record {
	out := rec.Clone()
	today := now.UTC()

	out.SetIfAbsent("domain", Domain(out["email"]))

	if out.Has("name") && out.Has("company") {
		out.SetIfAbsent("deal_name", out["name"]+"-"+out["company"])
	}
	if out.Has("deal_name") {
		out.SetIfAbsent("closed_deal_name", ClosedDealName(out["deal_name"], today))
	}

	if hasAny(out, productInputs) {
		category := CategoryDisplay(out["category"])
		if category == "" {
			category = DetermineCategory(out["offer_title"])
		}
		pkg := orDefault(out["package_type"], DefaultPackageType)
		out.SetIfAbsent("product_name", GenerateProductName(
			category, pkg,
			orDefault(out["users"], DefaultUserBucket),
			orDefault(out["license_type"], DefaultLicenseType)))
		out.SetIfAbsent("category", category)
		out.SetIfAbsent("visual_purchased", VisualPurchased(category, pkg, out["offer_title"]))
	}

	if out.Has("name") {
		out.SetIfAbsent("user_name", strings.Join(strings.Fields(strings.ToLower(out["name"])), ""))
	}

	out.SetIfAbsent("closing_date", ClosingDate(today))

	if out.Has("product_name") {
		id, _ := e.catalog.Lookup(out["product_name"])
		out.SetIfAbsent("item_id", id)
	}

	if out.Has("email") {
		out.SetIfAbsent("country", CountryFromEmail(out["email"]))
		out.SetIfAbsent("company", CompanyFromEmail(out["email"]))
	}
	return out
}

// ClosedDealName appends the closed-won marker and date to a deal name.
func ClosedDealName(dealName string, day time.Time) string {
	return dealName + "-CW-" + day.UTC().Format("20060102")
}

// ClosingDate is 30 days after day, as YYYY-MM-DD.
func ClosingDate(day time.Time) string {
	return day.UTC().Add(closingWindow).Format("2006-01-02")
}

func hasAny(rec model.Record, fields []string) bool {
	for _, f := range fields {
		if rec.Has(f) {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

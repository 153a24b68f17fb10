// Package crmformat shapes a canonical record for one CRM object kind.
package crmformat

import (
	"sort"
	"strings"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

// Contact field names with special handling.
const (
	ContactLastName   = "Last_Name"
	ContactLeadSource = "Lead_Source"
	ContactLeadValue  = "Website"
	UnknownContact    = "Unknown Contact"
)

// dealOnlyFields never appear on a Contact.
var dealOnlyFields = []string{"Pipeline", "Stage", "Deal_Name", "Priority"} //nolint:gochecknoglobals

// ToCRMFormat builds a fresh payload for kind: mapped fields that are set
// on the record, then defaults for targets still unset, then the
// kind-specific rules.
func ToCRMFormat(rec model.Record, kind model.Kind, rs *rules.RuleSet) model.CRMPayload {
	out := model.CRMPayload{}
	for _, target := range sortedKeys(rs.Mapping(kind)) {
		if v := rec[rs.Mapping(kind)[target]]; v != "" {
			out[target] = v
		}
	}
	for _, target := range sortedKeys(rs.Defaults(kind)) {
		if out.String(target) == "" {
			out[target] = rs.Defaults(kind)[target]
		}
	}
	if kind == model.KindContact {
		applyContactRules(rec, out)
	}
	return out
}

func applyContactRules(rec model.Record, out model.CRMPayload) {
	if out.String(ContactLastName) == "" {
		out[ContactLastName] = contactName(rec)
	}
	out[ContactLeadSource] = ContactLeadValue
	for _, f := range dealOnlyFields {
		delete(out, f)
	}
}

// contactName walks the fallback chain: full name, customer name,
// "first last", first, last, then a placeholder.
func contactName(rec model.Record) string {
	first, last := rec["first_name"], rec["last_name"]
	switch {
	case rec.Has("name"):
		return rec["name"]
	case rec.Has("customer_name"):
		return rec["customer_name"]
	case first != "" && last != "":
		return strings.TrimSpace(first + " " + last)
	case first != "":
		return first
	case last != "":
		return last
	default:
		return UnknownContact
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package extract

import (
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

// Extract detects the payload shape and builds the canonical record.
func Extract(payload model.Payload, rs *rules.RuleSet) model.Record {
	return FromShape(Detect(payload), rs)
}

// FromShape builds the canonical record for an already detected shape.
// Missing fields are simply absent from the result.
func FromShape(shape Shape, rs *rules.RuleSet) model.Record {
	switch s := shape.(type) {
	case Alternate:
		return fromAlternate(s)
	case Enveloped:
		rec := byAliases(s.Data, rs)
		if name, ok := Scalar(s.EventName); ok && name != "" {
			rec["event_name"] = name
		}
		return rec
	case Flat:
		return byAliases(s.Data, rs)
	default:
		return model.Record{}
	}
}

var userDetailFields = []struct{ key, field string }{
	{"FirstName", "first_name"},
	{"LastName", "last_name"},
	{"Email", "email"},
	{"Phone", "phone"},
	{"Country", "country"},
	{"Company", "company"},
	{"Title", "user_title"},
}

func fromAlternate(a Alternate) model.Record {
	rec := model.Record{}
	for _, f := range userDetailFields {
		set(rec, f.field, a.UserDetails[f.key])
	}
	if rec.Has("first_name") && rec.Has("last_name") {
		rec["name"] = rec["first_name"] + " " + rec["last_name"]
	}
	set(rec, "source", a.LeadSource)
	set(rec, "action_code", a.ActionCode)
	set(rec, "offer_title", a.OfferTitle)
	set(rec, "message", a.Description)
	return rec
}

// byAliases takes, for every canonical field, the first alias whose value is
// a non-empty scalar.
func byAliases(src map[string]any, rs *rules.RuleSet) model.Record {
	rec := model.Record{}
	for field := range rs.FieldMappings {
		for _, key := range rs.Aliases(field) {
			if v, ok := Scalar(src[key]); ok && v != "" {
				rec[field] = v
				break
			}
		}
	}
	return rec
}

func set(rec model.Record, field string, v any) {
	if s, ok := Scalar(v); ok && s != "" {
		rec[field] = s
	}
}

// Package transform applies per-field transformation rules to a record.
package transform

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

var (
	nonDialable = regexp.MustCompile(`[^\d+]`)
	hasProtocol = regexp.MustCompile(`^https?://`)
)

// Transform returns a new record with name synthesized from first/last name
// when absent, then every rule in rs applied to the fields it names.
func Transform(rec model.Record, rs *rules.RuleSet) model.Record {
	out := rec.Clone()
	SynthesizeName(out)
	for field, rule := range rs.TransformationRules {
		v := out[field]
		if v == "" {
			continue
		}
		out[field] = Apply(v, rule)
	}
	return out
}

// SynthesizeName sets name to "first last" (trimmed) when name is unset and
// at least one part is present.
func SynthesizeName(rec model.Record) {
	if rec.Has("name") || (!rec.Has("first_name") && !rec.Has("last_name")) {
		return
	}
	if name := strings.TrimSpace(rec["first_name"] + " " + rec["last_name"]); name != "" {
		rec["name"] = name
	}
}

// Apply runs the enabled steps of rule in fixed order: trim, lower-case,
// title-case, strip whitespace, strip to digits and '+', country code,
// protocol.
func Apply(v string, rule rules.TransformRule) string {
	if rule.Trim {
		v = strings.TrimSpace(v)
	}
	if rule.ToLowerCase {
		v = strings.ToLower(v)
	}
	if rule.TitleCase || rule.ToTitleCase {
		v = TitleCase(v)
	}
	if rule.RemoveSpaces {
		v = strings.Join(strings.Fields(v), "")
	}
	if rule.RemoveSpecialChars {
		v = nonDialable.ReplaceAllString(v, "")
	}
	if rule.AddCountryCode != "" && !strings.HasPrefix(v, "+") {
		v = rule.AddCountryCode + v
	}
	if rule.AddProtocol != "" && !hasProtocol.MatchString(v) {
		v = rule.AddProtocol + "://" + v
	}
	return v
}

// TitleCase upper-cases the first character of every whitespace-delimited
// word and lower-cases the rest. Whitespace is preserved as is.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := true
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch {
		case unicode.IsSpace(r):
			start = true
			b.WriteRune(r)
		case start:
			start = false
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

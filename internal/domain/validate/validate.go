// Package validate checks a transformed record against the validation rules.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

// Validate applies every rule in declaration order. It never fails; the
// outcome is reported in the result.
func Validate(rec model.Record, rs *rules.RuleSet) model.ValidationResult {
	errs := []string{}
	for _, rule := range rs.ValidationRules {
		errs = append(errs, check(rec[rule.Field], rule)...)
	}
	return model.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func check(v string, rule rules.FieldRule) []string {
	if strings.TrimSpace(v) == "" {
		if rule.Required {
			return []string{rule.Field + " is required"}
		}
		return nil
	}
	var errs []string
	if rule.MinLength > 0 && utf8.RuneCountInString(v) < rule.MinLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", rule.Field, rule.MinLength))
	}
	if re := rule.Regexp(); re != nil && !re.MatchString(v) {
		msg := rule.Message
		if msg == "" {
			msg = rule.Field + " format is invalid"
		}
		errs = append(errs, msg)
	}
	return errs
}

// Message formats a failed result as a single error string.
func Message(res model.ValidationResult) string {
	return "Validation failed: " + strings.Join(res.Errors, ", ")
}

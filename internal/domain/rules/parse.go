package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/crmflow/internal/domain/model"
)

// Format identifies the encoding of a rule set file.
type Format int

// Supported rule set encodings.
const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks a format from the file extension. Unknown extensions are
// read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// document is the on-disk shape. zohoFieldMappings is the legacy name of
// the Contact mapping table, and defaultValues may be flat (Contact only)
// or keyed by kind.
type document struct {
	FieldMappings       map[string][]string          `json:"fieldMappings" yaml:"fieldMappings"`
	ValidationRules     ValidationRules              `json:"validationRules" yaml:"validationRules"`
	TransformationRules map[string]TransformRule     `json:"transformationRules" yaml:"transformationRules"`
	CRMFieldMappings    map[string]map[string]string `json:"crmFieldMappings" yaml:"crmFieldMappings"`
	ZohoFieldMappings   map[string]string            `json:"zohoFieldMappings" yaml:"zohoFieldMappings"`
	DefaultValues       map[string]any               `json:"defaultValues" yaml:"defaultValues"`
	LicenseEventRules   LicenseEventRules            `json:"licenseEventRules" yaml:"licenseEventRules"`
	StageMapping        StageMapping                 `json:"stageMapping" yaml:"stageMapping"`
	SourceMapping       map[string]string            `json:"sourceMapping" yaml:"sourceMapping"`
}

// Load reads and compiles the rule set at path. Warnings describe
// suspicious but usable configuration such as overlapping event lists.
func Load(path string) (*RuleSet, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rule set %s: %w", path, err)
	}
	rs, warnings, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, warnings, nil
}

// Parse decodes and compiles a rule set.
func Parse(data []byte, format Format) (*RuleSet, []string, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
		}
	default:
		return nil, nil, ErrUnsupportedFormat
	}
	return compile(doc)
}

func compile(doc document) (*RuleSet, []string, error) {
	rs := &RuleSet{
		FieldMappings:       doc.FieldMappings,
		TransformationRules: make(map[string]TransformRule, len(doc.TransformationRules)),
		CRMFieldMappings:    make(map[model.Kind]map[string]string),
		DefaultValues:       make(map[model.Kind]map[string]string),
		LicenseEventRules:   doc.LicenseEventRules,
		StageMapping:        doc.StageMapping,
		SourceMapping:       lowerKeys(doc.SourceMapping),
	}
	if rs.FieldMappings == nil {
		rs.FieldMappings = map[string][]string{}
	}

	for _, r := range doc.ValidationRules {
		if r.MinLength < 0 {
			return nil, nil, fmt.Errorf("%w: validationRules.%s: negative minLength", ErrInvalidRuleSet, r.Field)
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: validationRules.%s: %v", ErrInvalidRuleSet, r.Field, err)
			}
			r.re = re
		}
		rs.ValidationRules = append(rs.ValidationRules, r)
	}

	for field, t := range doc.TransformationRules {
		t.TitleCase = t.TitleCase || t.ToTitleCase
		t.ToTitleCase = false
		rs.TransformationRules[field] = t
	}

	for name, table := range doc.CRMFieldMappings {
		kind, err := model.ParseKind(name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: crmFieldMappings: %v", ErrInvalidRuleSet, err)
		}
		rs.CRMFieldMappings[kind] = table
	}
	if _, ok := rs.CRMFieldMappings[model.KindContact]; !ok && len(doc.ZohoFieldMappings) > 0 {
		rs.CRMFieldMappings[model.KindContact] = doc.ZohoFieldMappings
	}

	if err := compileDefaults(rs, doc.DefaultValues); err != nil {
		return nil, nil, err
	}

	sm := &rs.StageMapping
	sm.Trial.NewContact = lowerKeys(sm.Trial.NewContact)
	sm.Trial.ExistingContact = lowerKeys(sm.Trial.ExistingContact)
	sm.Activation = lowerKeys(sm.Activation)

	warnings := compileEvents(rs)
	return rs, warnings, nil
}

func compileDefaults(rs *RuleSet, raw map[string]any) error {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch v := raw[key].(type) {
		case map[string]any:
			kind, err := model.ParseKind(key)
			if err != nil {
				return fmt.Errorf("%w: defaultValues: %v", ErrInvalidRuleSet, err)
			}
			table := rs.DefaultValues[kind]
			if table == nil {
				table = make(map[string]string, len(v))
				rs.DefaultValues[kind] = table
			}
			for field, val := range v {
				s, ok := scalarString(val)
				if !ok {
					return fmt.Errorf("%w: defaultValues.%s.%s: not a scalar", ErrInvalidRuleSet, key, field)
				}
				table[field] = s
			}
		default:
			s, ok := scalarString(v)
			if !ok {
				return fmt.Errorf("%w: defaultValues.%s: not a scalar", ErrInvalidRuleSet, key)
			}
			table := rs.DefaultValues[model.KindContact]
			if table == nil {
				table = map[string]string{}
				rs.DefaultValues[model.KindContact] = table
			}
			if _, set := table[key]; !set {
				table[key] = s
			}
		}
	}
	return nil
}

// compileEvents lower-cases every event list, builds lookup sets and reports
// names listed under more than one category.
func compileEvents(rs *RuleSet) []string {
	rs.events = make(map[model.EventType]map[string]struct{})
	owner := make(map[string]model.EventType)
	var warnings []string
	for _, cl := range rs.LicenseEventRules.categoryLists() {
		set := make(map[string]struct{}, len(*cl.names))
		lowered := make([]string, 0, len(*cl.names))
		for _, name := range *cl.names {
			n := strings.ToLower(strings.TrimSpace(name))
			if n == "" {
				continue
			}
			if _, dup := set[n]; dup {
				continue
			}
			set[n] = struct{}{}
			lowered = append(lowered, n)
			if first, seen := owner[n]; seen {
				warnings = append(warnings, fmt.Sprintf(
					"event %q is listed as both %s and %s; %s wins", n, first, cl.category, first))
				continue
			}
			owner[n] = cl.category
		}
		*cl.names = lowered
		rs.events[cl.category] = set
	}
	return warnings
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case nil:
		return "", true
	default:
		return "", false
	}
}

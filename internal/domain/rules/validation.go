package rules

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValidationRules keeps validation rules in declaration order so that
// validation errors are reported in that order.
type ValidationRules []FieldRule

// Lookup returns the rule for field.
func (v ValidationRules) Lookup(field string) (FieldRule, bool) {
	for _, r := range v {
		if r.Field == field {
			return r, true
		}
	}
	return FieldRule{}, false
}

func (v *ValidationRules) put(r FieldRule) {
	for i := range *v {
		if (*v)[i].Field == r.Field {
			(*v)[i] = r
			return
		}
	}
	*v = append(*v, r)
}

// UnmarshalJSON decodes an object while keeping key order.
func (v *ValidationRules) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("validationRules: expected object, got %v", tok)
	}
	out := ValidationRules{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var r FieldRule
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("validationRules.%s: %w", key, err)
		}
		r.Field = key
		out.put(r)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*v = out
	return nil
}

// MarshalJSON encodes the rules as an object in declaration order.
func (v ValidationRules) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a mapping node while keeping key order.
func (v *ValidationRules) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("validationRules: expected mapping at line %d", node.Line)
	}
	out := ValidationRules{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var r FieldRule
		if err := node.Content[i+1].Decode(&r); err != nil {
			return fmt.Errorf("validationRules.%s: %w", key, err)
		}
		r.Field = key
		out.put(r)
	}
	*v = out
	return nil
}

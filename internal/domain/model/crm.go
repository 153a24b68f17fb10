package model

import (
	"fmt"
	"strings"
)

// Kind names a CRM object type.
type Kind string

// Supported CRM object kinds.
const (
	KindContact Kind = "Contact"
	KindCompany Kind = "Company"
	KindDeal    Kind = "Deal"
	KindProduct Kind = "Product"
)

// Kinds lists every kind in mapping order.
func Kinds() []Kind {
	return []Kind{KindContact, KindCompany, KindDeal, KindProduct}
}

// ParseKind accepts a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown CRM kind %q", s)
}

// CRMPayload is a record shaped for one CRM object kind.
type CRMPayload map[string]any

// Clone returns a shallow copy.
func (p CRMPayload) Clone() CRMPayload {
	out := make(CRMPayload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns field as a string or "".
func (p CRMPayload) String(field string) string {
	s, _ := p[field].(string)
	return s
}

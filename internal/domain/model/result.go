package model

import "encoding/json"

// Normalized is the successful pipeline output: the canonical record plus
// the CRM payloads and classification built from it.
type Normalized struct {
	Record  Record
	CRM     map[Kind]CRMPayload
	License ClassifiedEvent
	Deal    CRMPayload
}

// MarshalJSON flattens the record next to the crm, license and deal members.
func (n Normalized) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Record)+3)
	for k, v := range n.Record {
		if v != "" {
			out[k] = v
		}
	}
	crm := n.CRM
	if crm == nil {
		crm = map[Kind]CRMPayload{}
	}
	out["crm"] = crm
	out["license"] = n.License
	if n.Deal != nil {
		out["deal"] = n.Deal
	} else {
		out["deal"] = nil
	}
	return json.Marshal(out)
}

// Result is the two-shaped outcome handed to collaborators. Success selects
// which of Data or Error is meaningful.
type Result struct {
	Success         bool
	Data            *Normalized
	Error           string
	OriginalPayload any
}

// Succeeded builds a success result.
func Succeeded(data *Normalized, original any) Result {
	return Result{Success: true, Data: data, OriginalPayload: original}
}

// Failed builds a failure result.
func Failed(msg string, original any) Result {
	return Result{Success: false, Error: msg, OriginalPayload: original}
}

// MarshalJSON emits {success,data,originalPayload} or {success,error,originalPayload}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success         bool        `json:"success"`
			Data            *Normalized `json:"data"`
			OriginalPayload any         `json:"originalPayload"`
		}{true, r.Data, r.OriginalPayload})
	}
	return json.Marshal(struct {
		Success         bool   `json:"success"`
		Error           string `json:"error"`
		OriginalPayload any    `json:"originalPayload"`
	}{false, r.Error, r.OriginalPayload})
}

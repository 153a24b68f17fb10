// Package extract turns a raw webhook payload into a canonical record.
package extract

import (
	"encoding/json"
	"strconv"

	"github.com/okian/crmflow/internal/domain/model"
)

// Shape is one of the known payload layouts. It is resolved once by Detect.
type Shape interface {
	// Name is a short label used in logs and metrics.
	Name() string
	isShape()
}

// Alternate is the legacy layout with top-level UserDetails, LeadSource,
// ActionCode, OfferTitle and Description.
type Alternate struct {
	UserDetails map[string]any
	LeadSource  any
	ActionCode  any
	OfferTitle  any
	Description any
}

// Enveloped is {webhookTrigger:{payload:{data:{...},eventName}}}.
type Enveloped struct {
	Data      map[string]any
	EventName any
}

// Flat is a plain object of fields.
type Flat struct {
	Data map[string]any
}

func (Alternate) Name() string { return "alternate" }
func (Enveloped) Name() string { return "enveloped" }
func (Flat) Name() string      { return "flat" }

func (Alternate) isShape() {}
func (Enveloped) isShape() {}
func (Flat) isShape()      {}

// Detect classifies payload. All four of UserDetails, LeadSource, ActionCode
// and OfferTitle must be present for the alternate layout; otherwise the
// envelope is used when webhookTrigger.payload.data is an object, and the
// payload itself is the field source as a last resort.
func Detect(payload model.Payload) Shape {
	if truthy(payload["UserDetails"]) && truthy(payload["LeadSource"]) &&
		truthy(payload["ActionCode"]) && truthy(payload["OfferTitle"]) {
		user, _ := payload["UserDetails"].(map[string]any)
		return Alternate{
			UserDetails: user,
			LeadSource:  payload["LeadSource"],
			ActionCode:  payload["ActionCode"],
			OfferTitle:  payload["OfferTitle"],
			Description: payload["Description"],
		}
	}
	if trigger, ok := payload["webhookTrigger"].(map[string]any); ok {
		if inner, ok := trigger["payload"].(map[string]any); ok {
			if data, ok := inner["data"].(map[string]any); ok {
				return Enveloped{Data: data, EventName: inner["eventName"]}
			}
		}
	}
	return Flat{Data: payload}
}

// truthy mirrors loose JSON truthiness: null, "", false and 0 are absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

// Scalar renders a JSON scalar as a string. Objects, arrays and null are
// reported as absent.
func Scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

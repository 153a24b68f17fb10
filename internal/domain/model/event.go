package model

import "encoding/json"

// EventType is the lifecycle category an event name resolves to.
type EventType string

// Event categories in classification priority order. EventNone means the
// event name matched no list.
const (
	EventNone             EventType = ""
	EventTrial            EventType = "trial"
	EventActivation       EventType = "activation"
	EventPurchase         EventType = "purchase"
	EventPurchaseInitiate EventType = "purchaseInitiate"
	EventRenewal          EventType = "renewal"
	EventRenewalInitiate  EventType = "renewalInitiate"
	EventCancellation     EventType = "cancellation"
)

// String returns the label used in logs and metrics.
func (e EventType) String() string {
	if e == EventNone {
		return "none"
	}
	return string(e)
}

// ClassifiedEvent is the classifier output for one payload.
type ClassifiedEvent struct {
	EventType EventType
	Stage     string
	Source    string
	DealName  string
}

// Matched reports whether the event resolved to a category.
func (c ClassifiedEvent) Matched() bool {
	return c.EventType != EventNone
}

// MarshalJSON renders unset members as null.
func (c ClassifiedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventType *string `json:"eventType"`
		Stage     *string `json:"stage"`
		Source    *string `json:"source"`
		DealName  *string `json:"dealName"`
	}{
		EventType: nullable(string(c.EventType)),
		Stage:     nullable(c.Stage),
		Source:    nullable(c.Source),
		DealName:  nullable(c.DealName),
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package model

import "time"

// Delivery is one accepted webhook waiting for CRM sync.
type Delivery struct {
	// Key is the idempotency key the delivery was accepted under.
	Key        string
	RequestID  string
	ReceivedAt time.Time
	Payload    Payload
	Body       []byte
	Headers    map[string]string
}

package webhookgen

import (
	"time"

	"github.com/okian/crmflow/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Path          string        // Webhook path, /webhook when empty
	NumWebhooks   int           // Number of webhooks to generate
	Workers       int           // Number of concurrent senders
	Timeout       time.Duration // HTTP request timeout
	DuplicateRate float64       // Share of deliveries re-sent with the same id, 0..1
	Seed          int64         // Faker seed, 0 for a random one
	OutputFile    string        // Write the generated webhooks here when set
}

// Webhook is one generated delivery.
type Webhook struct {
	ID    string        `json:"id"`
	Shape string        `json:"shape"`
	Body  model.Payload `json:"body"`
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Submitted   int
	Accepted    int
	Duplicate   int
	Rejected    int
	Backpressed int
	Failed      int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

package webhookgen

// Payload layouts understood by the service.
const (
	ShapeEnveloped = "enveloped"
	ShapeAlternate = "alternate"
	ShapeFlat      = "flat"
)

// Delivery outcomes.
const (
	outcomeAccepted    = "accepted"
	outcomeDuplicate   = "duplicate"
	outcomeRejected    = "rejected"
	outcomeBackpressed = "backpressed"
	outcomeFailed      = "failed"
)

const (
	defaultPath             = "/webhook"
	webhookIDHeader         = "X-Webhook-Id"
	workerChannelMultiplier = 2
	percentageMultiplier    = 100
	directoryPermission     = 0o750
)

package rules

import "errors"

// Sentinel errors for rule set loading.
var (
	ErrInvalidRuleSet    = errors.New("invalid rule set")
	ErrUnsupportedFormat = errors.New("unsupported rule set format")
	ErrNoPath            = errors.New("rule set has no backing file")
)

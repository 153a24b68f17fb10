package crm

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnauthorized  = errors.New("crm: unauthorized")
	ErrNotConfigured = errors.New("crm: client id, secret and refresh token are required")
)

// APIError is a non-success response from the CRM API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("crm api: status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("crm api: status %d", e.Status)
}

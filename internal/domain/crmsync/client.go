// Package crmsync upserts a normalized record into the CRM: contact,
// company and product first, then the deal for classified license events.
package crmsync

import (
	"context"
	"errors"

	"github.com/okian/crmflow/internal/domain/model"
)

// Sentinel errors.
var (
	// ErrDuplicate is returned by create calls when the CRM already holds a
	// matching record.
	ErrDuplicate = errors.New("crm: duplicate record")
	ErrNoRecord  = errors.New("crm: no record returned")
)

// Entity is a CRM record reference.
type Entity struct {
	ID     string
	Fields map[string]any
}

// CRMClient is the CRM API surface the syncer needs. Find methods return
// nil, nil when nothing matches.
type CRMClient interface {
	CreateContact(ctx context.Context, p model.CRMPayload) (*Entity, error)
	FindContactByEmail(ctx context.Context, email string) (*Entity, error)
	CreateCompany(ctx context.Context, p model.CRMPayload) (*Entity, error)
	FindCompanyByName(ctx context.Context, name string) (*Entity, error)
	CreateDeal(ctx context.Context, p model.CRMPayload) (*Entity, error)
	FindDealByName(ctx context.Context, name string) (*Entity, error)
	UpdateDeal(ctx context.Context, id string, p model.CRMPayload) (*Entity, error)
	CreateProduct(ctx context.Context, p model.CRMPayload) (*Entity, error)
	FindProductByName(ctx context.Context, name string) (*Entity, error)
}

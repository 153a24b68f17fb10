package crmsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/pipeline"
)

// Outcome reports what a sync touched.
type Outcome struct {
	Normalized  *model.Normalized
	NewContact  bool
	ContactID   string
	CompanyID   string
	ProductID   string
	DealID      string
	DealUpdated bool
}

// Syncer pushes normalized records to a CRMClient.
type Syncer struct {
	processor *pipeline.Processor
	client    CRMClient
}

// New returns a Syncer.
func New(p *pipeline.Processor, client CRMClient) *Syncer {
	return &Syncer{processor: p, client: client}
}

// Sync normalizes payload and upserts it. A validation failure is returned
// as a *pipeline.ValidationError before any CRM call is made.
func (s *Syncer) Sync(ctx context.Context, payload model.Payload) (*Outcome, error) {
	n, err := s.processor.Normalize(payload)
	if err != nil {
		return nil, err
	}
	return s.SyncNormalized(ctx, n)
}

// SyncNormalized upserts an already normalized record. Contact existence
// decides the trial stage, so the contact lookup runs before classification.
func (s *Syncer) SyncNormalized(ctx context.Context, n *pipeline.Normalization) (*Outcome, error) {
	out := &Outcome{}

	var contact *Entity
	if email := n.Record["email"]; email != "" {
		found, err := s.client.FindContactByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("find contact: %w", err)
		}
		contact = found
	}
	out.NewContact = contact == nil
	out.Normalized = s.processor.Build(n, out.NewContact)
	crm := out.Normalized.CRM

	if contact == nil {
		created, err := upsert(ctx, crm[model.KindContact],
			s.client.CreateContact,
			func(ctx context.Context) (*Entity, error) {
				return s.client.FindContactByEmail(ctx, n.Record["email"])
			})
		if err != nil {
			return nil, fmt.Errorf("create contact: %w", err)
		}
		contact = created
	}
	out.ContactID = contact.ID

	if p, ok := crm[model.KindCompany]; ok {
		name := p.String("Account_Name")
		company, err := findOrCreate(ctx, p,
			func(ctx context.Context) (*Entity, error) { return s.client.FindCompanyByName(ctx, name) },
			s.client.CreateCompany)
		if err != nil {
			return nil, fmt.Errorf("company %q: %w", name, err)
		}
		out.CompanyID = company.ID
	}

	if p, ok := crm[model.KindProduct]; ok {
		name := p.String("Product_Name")
		product, err := findOrCreate(ctx, p,
			func(ctx context.Context) (*Entity, error) { return s.client.FindProductByName(ctx, name) },
			s.client.CreateProduct)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", name, err)
		}
		out.ProductID = product.ID
	}

	if out.Normalized.Deal != nil {
		if err := s.syncDeal(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Syncer) syncDeal(ctx context.Context, out *Outcome) error {
	deal := out.Normalized.Deal.Clone()
	if out.ContactID != "" {
		deal["Contact_Name"] = map[string]any{"id": out.ContactID}
	}
	if out.CompanyID != "" {
		deal["Account_Name"] = map[string]any{"id": out.CompanyID}
	}
	if out.ProductID != "" {
		deal["Product_Name"] = map[string]any{"id": out.ProductID}
	}
	name := deal.String("Deal_Name")

	existing, err := s.client.FindDealByName(ctx, name)
	if err != nil {
		return fmt.Errorf("find deal %q: %w", name, err)
	}
	if existing != nil {
		if _, err := s.client.UpdateDeal(ctx, existing.ID, deal); err != nil {
			return fmt.Errorf("update deal %q: %w", name, err)
		}
		out.DealID = existing.ID
		out.DealUpdated = true
		return nil
	}

	created, err := upsert(ctx, deal, s.client.CreateDeal,
		func(ctx context.Context) (*Entity, error) { return s.client.FindDealByName(ctx, name) })
	if err != nil {
		return fmt.Errorf("create deal %q: %w", name, err)
	}
	out.DealID = created.ID
	return nil
}

type (
	createFunc func(context.Context, model.CRMPayload) (*Entity, error)
	findFunc   func(context.Context) (*Entity, error)
)

func findOrCreate(ctx context.Context, p model.CRMPayload, find findFunc, create createFunc) (*Entity, error) {
	found, err := find(ctx)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}
	return upsert(ctx, p, create, find)
}

// upsert creates p and falls back to find when the CRM reports a duplicate.
func upsert(ctx context.Context, p model.CRMPayload, create createFunc, find findFunc) (*Entity, error) {
	created, err := create(ctx, p)
	if err == nil {
		if created == nil {
			return nil, ErrNoRecord
		}
		return created, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, err
	}
	found, ferr := find(ctx)
	if ferr != nil {
		return nil, ferr
	}
	if found == nil {
		return nil, err
	}
	return found, nil
}

// Package pipeline composes extraction, transformation, validation,
// derivation, classification and CRM mapping into one run per payload.
package pipeline

import (
	"time"

	"github.com/okian/crmflow/internal/domain/classify"
	"github.com/okian/crmflow/internal/domain/crmformat"
	"github.com/okian/crmflow/internal/domain/derive"
	"github.com/okian/crmflow/internal/domain/extract"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
	"github.com/okian/crmflow/internal/domain/transform"
	"github.com/okian/crmflow/internal/domain/validate"
)

// RuleSource hands out the rule set to use for the next run.
type RuleSource interface {
	Current() *rules.RuleSet
}

// Processor runs the pipeline. It holds no per-request state and is safe
// for concurrent use.
type Processor struct {
	rules  RuleSource
	engine *derive.Engine
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock pins the clock used for dates.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithEngine replaces the derivation engine.
func WithEngine(e *derive.Engine) Option {
	return func(p *Processor) {
		if e != nil {
			p.engine = e
		}
	}
}

// New builds a Processor reading rules from src.
func New(src RuleSource, opts ...Option) *Processor {
	p := &Processor{rules: src, engine: derive.New(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Normalization is the state after the validation gate has passed.
type Normalization struct {
	RuleSet    *rules.RuleSet
	Shape      extract.Shape
	Record     model.Record
	Validation model.ValidationResult
	Now        time.Time
}

// CatalogHit reports whether the record's product name is in the catalog.
func (p *Processor) CatalogHit(rec model.Record) bool {
	if !rec.Has("product_name") {
		return true
	}
	_, ok := p.engine.Catalog().Lookup(rec["product_name"])
	return ok
}

// Normalize extracts, transforms, validates and derives. A failed
// validation returns a *ValidationError together with the partial
// normalization so callers can report what was extracted.
func (p *Processor) Normalize(payload model.Payload) (*Normalization, error) {
	rs := p.rules.Current()
	if rs == nil {
		return nil, ErrNoRules
	}
	n := &Normalization{RuleSet: rs, Shape: extract.Detect(payload), Now: p.now()}
	rec := transform.Transform(extract.FromShape(n.Shape, rs), rs)
	n.Validation = validate.Validate(rec, rs)
	if !n.Validation.IsValid {
		n.Record = rec
		return n, &ValidationError{Result: n.Validation}
	}
	n.Record = p.engine.Derive(rec, n.Now)
	return n, nil
}

// Build classifies the event and maps the record to every CRM kind it
// supports. isNewContact selects the trial stage table.
func (p *Processor) Build(n *Normalization, isNewContact bool) *model.Normalized {
	rs := n.RuleSet
	license := classify.Classify(classify.Input{Record: n.Record, IsNewContact: isNewContact, Now: n.Now}, rs)
	out := &model.Normalized{
		Record:  n.Record,
		License: license,
		CRM: map[model.Kind]model.CRMPayload{
			model.KindContact: crmformat.ToCRMFormat(n.Record, model.KindContact, rs),
		},
	}
	if n.Record.Has("company") {
		out.CRM[model.KindCompany] = crmformat.ToCRMFormat(n.Record, model.KindCompany, rs)
	}
	if n.Record.Has("product_name") {
		out.CRM[model.KindProduct] = crmformat.ToCRMFormat(n.Record, model.KindProduct, rs)
	}
	if deal := dealPayload(n.Record, license, rs); deal != nil {
		out.CRM[model.KindDeal] = deal
		out.Deal = deal
	}
	return out
}

// dealPayload is built only for classified events that have a deal name.
func dealPayload(rec model.Record, license model.ClassifiedEvent, rs *rules.RuleSet) model.CRMPayload {
	if !license.Matched() {
		return nil
	}
	name := license.DealName
	if name == "" {
		name = rec["deal_name"]
	}
	if name == "" {
		return nil
	}
	deal := crmformat.ToCRMFormat(rec, model.KindDeal, rs)
	deal["Deal_Name"] = name
	if license.Stage != "" {
		deal["Stage"] = license.Stage
	}
	return deal
}

// Process runs the whole pipeline without a CRM lookup, treating the
// contact as new. The result never carries a Go error: failures are
// reported through the success flag.
func (p *Processor) Process(payload model.Payload) model.Result {
	n, err := p.Normalize(payload)
	if err != nil {
		return model.Failed(err.Error(), payload)
	}
	return model.Succeeded(p.Build(n, true), payload)
}

// Package classify maps an event name to a lifecycle category and CRM stage.
package classify

import (
	"strings"
	"time"

	"github.com/okian/crmflow/internal/domain/derive"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

const (
	defaultActivationStage    = "Trial - Activated"
	cancelledStage            = "Cancelled"
	defaultTrialSource        = "Webhook"
	defaultDealBase           = "Deal"
	defaultNewTrialStage      = "Sample - Downloaded"
	defaultExistingTrialStage = "Trial - License"
)

// Input is everything the classifier looks at besides the rule set.
type Input struct {
	Record       model.Record
	IsNewContact bool
	Now          time.Time
}

// Classify checks the lower-cased event name against each category list in
// priority order and stops at the first hit. An unknown or missing event
// name yields an unmatched event, not an error.
func Classify(in Input, rs *rules.RuleSet) model.ClassifiedEvent {
	name := strings.ToLower(strings.TrimSpace(in.Record["event_name"]))
	if name == "" {
		return model.ClassifiedEvent{}
	}
	sm := rs.StageMapping
	for _, cat := range rules.Categories() {
		if !rs.InCategory(cat, name) {
			continue
		}
		ev := model.ClassifiedEvent{EventType: cat}
		switch cat {
		case model.EventTrial:
			ev.Stage = TrialStage(in.Record["source"], in.IsNewContact, sm.Trial)
			ev.Source = TrialSource(in.Record["source"], rs.SourceMapping)
		case model.EventActivation:
			ev.Stage = sm.Activation[name]
			if ev.Stage == "" {
				ev.Stage = defaultActivationStage
			}
		case model.EventPurchase:
			ev.Stage = PurchaseStage(name, sm.Purchase)
			ev.DealName = PurchaseDealName(in.Record, in.Now)
		case model.EventPurchaseInitiate:
			ev.Stage = sm.PurchaseInitiate
		case model.EventRenewal:
			ev.Stage = sm.Renewal
		case model.EventRenewalInitiate:
			ev.Stage = sm.RenewalInitiate
		case model.EventCancellation:
			ev.Stage = cancelledStage
		}
		return ev
	}
	return model.ClassifiedEvent{}
}

// TrialStage looks the lead source up in the new- or existing-contact table,
// falling back to that table's default.
func TrialStage(source string, isNewContact bool, t rules.TrialStages) string {
	key := strings.ToLower(strings.TrimSpace(source))
	if isNewContact {
		if stage := t.NewContact[key]; stage != "" {
			return stage
		}
		return orDefault(t.NewContactDefault, defaultNewTrialStage)
	}
	if stage := t.ExistingContact[key]; stage != "" {
		return stage
	}
	return orDefault(t.ExistingContactDefault, defaultExistingTrialStage)
}

// TrialSource normalizes a lead source through the mapping table. Unmapped
// sources pass through and a missing source becomes "Webhook".
func TrialSource(source string, mapping map[string]string) string {
	if mapped := mapping[strings.ToLower(strings.TrimSpace(source))]; mapped != "" {
		return mapped
	}
	return orDefault(source, defaultTrialSource)
}

// PurchaseStage picks the completed or initiated stage from the event name.
func PurchaseStage(lowerName string, p rules.PurchaseStages) string {
	switch {
	case strings.Contains(lowerName, "completed"):
		return p.Completed
	case strings.Contains(lowerName, "initiated"):
		return p.Initiated
	default:
		return p.Completed
	}
}

// PurchaseDealName is "<deal or product name>-CW-YYYYMMDD".
func PurchaseDealName(rec model.Record, now time.Time) string {
	base := rec["deal_name"]
	if base == "" {
		base = rec["product_name"]
	}
	return derive.ClosedDealName(orDefault(base, defaultDealBase), now)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

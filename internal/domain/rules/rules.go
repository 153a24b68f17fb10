// Package rules holds the declarative tables that drive extraction,
// transformation, validation, CRM mapping and event classification.
//
// A RuleSet is immutable once built by Parse, Load or Default. Reloading
// produces a new RuleSet that replaces the old one through a Store.
package rules

import (
	"regexp"

	"github.com/okian/crmflow/internal/domain/model"
)

// FieldRule is one validation rule. Field is taken from the rule's key.
type FieldRule struct {
	Field     string `json:"-" yaml:"-"`
	Required  bool   `json:"required,omitempty" yaml:"required,omitempty"`
	MinLength int    `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern or nil.
func (r FieldRule) Regexp() *regexp.Regexp { return r.re }

// TransformRule lists the transformations applied to one field.
type TransformRule struct {
	Trim               bool   `json:"trim,omitempty" yaml:"trim,omitempty"`
	ToLowerCase        bool   `json:"toLowerCase,omitempty" yaml:"toLowerCase,omitempty"`
	TitleCase          bool   `json:"titleCase,omitempty" yaml:"titleCase,omitempty"`
	ToTitleCase        bool   `json:"toTitleCase,omitempty" yaml:"toTitleCase,omitempty"`
	RemoveSpaces       bool   `json:"removeSpaces,omitempty" yaml:"removeSpaces,omitempty"`
	RemoveSpecialChars bool   `json:"removeSpecialChars,omitempty" yaml:"removeSpecialChars,omitempty"`
	AddCountryCode     string `json:"addCountryCode,omitempty" yaml:"addCountryCode,omitempty"`
	AddProtocol        string `json:"addProtocol,omitempty" yaml:"addProtocol,omitempty"`
}

// LicenseEventRules lists event names per category.
type LicenseEventRules struct {
	TrialEvents            []string `json:"trialEvents" yaml:"trialEvents"`
	ActivationEvents       []string `json:"activationEvents" yaml:"activationEvents"`
	PurchaseEvents         []string `json:"purchaseEvents" yaml:"purchaseEvents"`
	PurchaseInitiateEvents []string `json:"purchaseInitiateEvents" yaml:"purchaseInitiateEvents"`
	RenewalEvents          []string `json:"renewalEvents" yaml:"renewalEvents"`
	RenewalInitiateEvents  []string `json:"renewalInitiateEvents" yaml:"renewalInitiateEvents"`
	CancellationEvents     []string `json:"cancellationEvents" yaml:"cancellationEvents"`
}

// TrialStages picks a trial stage from contact existence and lead source.
// Source keys are matched case-insensitively.
type TrialStages struct {
	NewContact             map[string]string `json:"newContact" yaml:"newContact"`
	ExistingContact        map[string]string `json:"existingContact" yaml:"existingContact"`
	NewContactDefault      string            `json:"newContactDefault" yaml:"newContactDefault"`
	ExistingContactDefault string            `json:"existingContactDefault" yaml:"existingContactDefault"`
}

// PurchaseStages holds the completed/initiated purchase stages.
type PurchaseStages struct {
	Completed string `json:"completed" yaml:"completed"`
	Initiated string `json:"initiated" yaml:"initiated"`
}

// StageMapping holds the stage tables for every event category.
type StageMapping struct {
	Trial            TrialStages       `json:"trial" yaml:"trial"`
	Activation       map[string]string `json:"activation" yaml:"activation"`
	Purchase         PurchaseStages    `json:"purchase" yaml:"purchase"`
	PurchaseInitiate string            `json:"purchaseInitiate" yaml:"purchaseInitiate"`
	Renewal          string            `json:"renewal" yaml:"renewal"`
	RenewalInitiate  string            `json:"renewalInitiate" yaml:"renewalInitiate"`
}

// RuleSet is the complete, compiled configuration of the pipeline.
type RuleSet struct {
	FieldMappings       map[string][]string              `json:"fieldMappings"`
	ValidationRules     ValidationRules                  `json:"validationRules"`
	TransformationRules map[string]TransformRule         `json:"transformationRules"`
	CRMFieldMappings    map[model.Kind]map[string]string `json:"crmFieldMappings"`
	DefaultValues       map[model.Kind]map[string]string `json:"defaultValues"`
	LicenseEventRules   LicenseEventRules                `json:"licenseEventRules"`
	StageMapping        StageMapping                     `json:"stageMapping"`
	SourceMapping       map[string]string                `json:"sourceMapping"`

	events map[model.EventType]map[string]struct{}
}

// Aliases returns the alias list for a canonical field.
func (rs *RuleSet) Aliases(field string) []string {
	return rs.FieldMappings[field]
}

// Mapping returns the target→canonical field table for kind.
func (rs *RuleSet) Mapping(kind model.Kind) map[string]string {
	return rs.CRMFieldMappings[kind]
}

// Defaults returns the default values table for kind.
func (rs *RuleSet) Defaults(kind model.Kind) map[string]string {
	return rs.DefaultValues[kind]
}

// InCategory reports whether the lower-cased event name is listed for cat.
func (rs *RuleSet) InCategory(cat model.EventType, lowerName string) bool {
	_, ok := rs.events[cat][lowerName]
	return ok
}

// categoryLists pairs each category with its list, in priority order.
func (l *LicenseEventRules) categoryLists() []categoryList {
	return []categoryList{
		{model.EventTrial, &l.TrialEvents},
		{model.EventActivation, &l.ActivationEvents},
		{model.EventPurchase, &l.PurchaseEvents},
		{model.EventPurchaseInitiate, &l.PurchaseInitiateEvents},
		{model.EventRenewal, &l.RenewalEvents},
		{model.EventRenewalInitiate, &l.RenewalInitiateEvents},
		{model.EventCancellation, &l.CancellationEvents},
	}
}

type categoryList struct {
	category model.EventType
	names    *[]string
}

// Categories returns event categories in classification priority order.
func Categories() []model.EventType {
	return []model.EventType{
		model.EventTrial,
		model.EventActivation,
		model.EventPurchase,
		model.EventPurchaseInitiate,
		model.EventRenewal,
		model.EventRenewalInitiate,
		model.EventCancellation,
	}
}

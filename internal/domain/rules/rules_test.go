package rules

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crmflow/internal/domain/model"
)

const sampleJSON = `{
  "fieldMappings": {"name": ["name", "Name"]},
  "validationRules": {
    "phone": {"pattern": "^\\d+$", "message": "phone digits only"},
    "name": {"required": true, "minLength": 2},
    "email": {"required": true}
  },
  "transformationRules": {"name": {"toTitleCase": true}},
  "zohoFieldMappings": {"Last_Name": "name"},
  "defaultValues": {"Lead_Source": "Webhook", "Deal": {"Amount": 10}},
  "licenseEventRules": {
    "trialEvents": ["Product.Trial", "shared.event"],
    "purchaseEvents": ["product.purchase", "SHARED.EVENT"]
  },
  "stageMapping": {"trial": {"newContact": {"Website": "Trial - Website"}}},
  "sourceMapping": {"Website": "Website"}
}`

const sampleYAML = `
fieldMappings:
  email: [email, Email]
validationRules:
  zeta:
    required: true
  alpha:
    minLength: 3
crmFieldMappings:
  contact:
    Email: email
licenseEventRules:
  renewalEvents: [Product.Renewal]
`

func TestParseJSON(t *testing.T) {
	Convey("Given a JSON rule set", t, func() {
		rs, warnings, err := Parse([]byte(sampleJSON), FormatJSON)
		So(err, ShouldBeNil)

		Convey("Validation rules keep declaration order", func() {
			fields := []string{}
			for _, r := range rs.ValidationRules {
				fields = append(fields, r.Field)
			}
			So(fields, ShouldResemble, []string{"phone", "name", "email"})
			phone, ok := rs.ValidationRules.Lookup("phone")
			So(ok, ShouldBeTrue)
			So(phone.Regexp(), ShouldNotBeNil)
			So(phone.Message, ShouldEqual, "phone digits only")
		})

		Convey("toTitleCase is accepted as titleCase", func() {
			So(rs.TransformationRules["name"].TitleCase, ShouldBeTrue)
		})

		Convey("Legacy zohoFieldMappings becomes the Contact table", func() {
			So(rs.Mapping(model.KindContact), ShouldResemble, map[string]string{"Last_Name": "name"})
		})

		Convey("Flat defaults apply to Contact and nested defaults to their kind", func() {
			So(rs.Defaults(model.KindContact)["Lead_Source"], ShouldEqual, "Webhook")
			So(rs.Defaults(model.KindDeal)["Amount"], ShouldEqual, "10")
		})

		Convey("Event names and lookup keys are lower-cased", func() {
			So(rs.InCategory(model.EventTrial, "product.trial"), ShouldBeTrue)
			So(rs.LicenseEventRules.TrialEvents, ShouldContain, "product.trial")
			So(rs.StageMapping.Trial.NewContact["website"], ShouldEqual, "Trial - Website")
			So(rs.SourceMapping["website"], ShouldEqual, "Website")
		})

		Convey("Overlapping event lists produce a warning", func() {
			So(len(warnings), ShouldEqual, 1)
			So(warnings[0], ShouldContainSubstring, "shared.event")
			So(rs.InCategory(model.EventTrial, "shared.event"), ShouldBeTrue)
			So(rs.InCategory(model.EventPurchase, "shared.event"), ShouldBeTrue)
		})

		Convey("Marshalling keeps rule order", func() {
			b, err := json.Marshal(rs.ValidationRules)
			So(err, ShouldBeNil)
			So(string(b), ShouldStartWith, `{"phone":`)
		})
	})
}

func TestParseYAML(t *testing.T) {
	Convey("Given a YAML rule set", t, func() {
		rs, _, err := Parse([]byte(sampleYAML), FormatYAML)
		So(err, ShouldBeNil)
		So(rs.ValidationRules[0].Field, ShouldEqual, "zeta")
		So(rs.ValidationRules[1].Field, ShouldEqual, "alpha")
		So(rs.Mapping(model.KindContact)["Email"], ShouldEqual, "email")
		So(rs.InCategory(model.EventRenewal, "product.renewal"), ShouldBeTrue)
	})
}

func TestParseErrors(t *testing.T) {
	Convey("Malformed rule sets are rejected", t, func() {
		Convey("Bad regex", func() {
			_, _, err := Parse([]byte(`{"validationRules":{"x":{"pattern":"("}}}`), FormatJSON)
			So(errors.Is(err, ErrInvalidRuleSet), ShouldBeTrue)
		})
		Convey("Unknown CRM kind", func() {
			_, _, err := Parse([]byte(`{"crmFieldMappings":{"Lead":{"A":"b"}}}`), FormatJSON)
			So(errors.Is(err, ErrInvalidRuleSet), ShouldBeTrue)
		})
		Convey("Negative minLength", func() {
			_, _, err := Parse([]byte(`{"validationRules":{"x":{"minLength":-1}}}`), FormatJSON)
			So(errors.Is(err, ErrInvalidRuleSet), ShouldBeTrue)
		})
		Convey("Broken JSON", func() {
			_, _, err := Parse([]byte(`{`), FormatJSON)
			So(errors.Is(err, ErrInvalidRuleSet), ShouldBeTrue)
		})
		Convey("Unknown format", func() {
			_, _, err := Parse([]byte(`{}`), Format(9))
			So(errors.Is(err, ErrUnsupportedFormat), ShouldBeTrue)
		})
	})
}

func TestDefault(t *testing.T) {
	Convey("The built-in rule set", t, func() {
		rs := Default()
		So(rs.Aliases("name"), ShouldResemble, []string{"name", "Name", "full_name", "Full_Name"})
		So(rs.InCategory(model.EventTrial, "visualmaker.license.downloadtrial"), ShouldBeTrue)
		So(rs.InCategory(model.EventActivation, "user.login.register"), ShouldBeFalse)
		name, ok := rs.ValidationRules.Lookup("name")
		So(ok, ShouldBeTrue)
		So(name.Required, ShouldBeTrue)
		So(name.MinLength, ShouldEqual, 2)
		So(FormatFor("rules.yml"), ShouldEqual, FormatYAML)
		So(FormatFor("rules.json"), ShouldEqual, FormatJSON)
	})
}

func TestStore(t *testing.T) {
	Convey("Given a store backed by a file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "rules.json")
		So(os.WriteFile(path, []byte(`{"fieldMappings":{"a":["x"]}}`), 0o600), ShouldBeNil)

		store, _, err := NewStore(path)
		So(err, ShouldBeNil)
		first := store.Current()
		So(first.Aliases("a"), ShouldResemble, []string{"x"})

		Convey("Reload swaps in the new rule set", func() {
			So(os.WriteFile(path, []byte(`{"fieldMappings":{"a":["y"]}}`), 0o600), ShouldBeNil)
			_, err := store.Reload()
			So(err, ShouldBeNil)
			So(store.Current().Aliases("a"), ShouldResemble, []string{"y"})
			So(first.Aliases("a"), ShouldResemble, []string{"x"})
		})

		Convey("A failed reload keeps the previous rule set", func() {
			So(os.WriteFile(path, []byte(`{"validationRules":{"x":{"pattern":"["}}}`), 0o600), ShouldBeNil)
			_, err := store.Reload()
			So(err, ShouldNotBeNil)
			So(store.Current(), ShouldPointTo, first)
		})
	})

	Convey("A store without a file uses the defaults and cannot reload", t, func() {
		store, _, err := NewStore("")
		So(err, ShouldBeNil)
		So(store.Current().Aliases("email"), ShouldNotBeEmpty)
		_, err = store.Reload()
		So(errors.Is(err, ErrNoPath), ShouldBeTrue)
	})
}

func TestWatcher(t *testing.T) {
	Convey("Given a watched rules file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "rules.json")
		So(os.WriteFile(path, []byte(`{"fieldMappings":{"a":["x"]}}`), 0o600), ShouldBeNil)
		store, _, err := NewStore(path)
		So(err, ShouldBeNil)

		reloaded := make(chan error, 4)
		w, err := NewWatcher(store,
			WithDebounce(20*time.Millisecond),
			WithReloadFunc(func(_ []string, err error) { reloaded <- err }))
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		w.Start(ctx)
		defer func() { _ = w.Stop() }()

		So(os.WriteFile(path, []byte(`{"fieldMappings":{"a":["z"]}}`), 0o600), ShouldBeNil)

		select {
		case err := <-reloaded:
			So(err, ShouldBeNil)
		case <-time.After(5 * time.Second):
			So("reload timed out", ShouldBeEmpty)
		}
		So(store.Current().Aliases("a"), ShouldResemble, []string{"z"})
	})
}

package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

var pinned = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newProcessor() *Processor {
	return New(rules.NewStaticStore(rules.Default()), WithClock(func() time.Time { return pinned }))
}

func payload(t *testing.T, s string) model.Payload {
	t.Helper()
	var p model.Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestEndToEnd(t *testing.T) {
	Convey("Given the enveloped registration payload", t, func() {
		p := newProcessor()
		in := payload(t, `{"webhookTrigger":{"payload":{"data":{"firstName":"John","lastName":"Doe","email":"john@example.com","company":"Example Corp"},"eventName":"user.login.register"}}}`)

		res := p.Process(in)
		So(res.Success, ShouldBeTrue)
		data := res.Data

		Convey("Extraction and transformation", func() {
			So(data.Record["first_name"], ShouldEqual, "John")
			So(data.Record["last_name"], ShouldEqual, "Doe")
			So(data.Record["email"], ShouldEqual, "john@example.com")
			So(data.Record["company"], ShouldEqual, "Example Corp")
			So(data.Record["event_name"], ShouldEqual, "user.login.register")
			So(data.Record["name"], ShouldEqual, "John Doe")
		})

		Convey("The event is unmatched and no deal is built", func() {
			So(data.License.Matched(), ShouldBeFalse)
			So(data.Deal, ShouldBeNil)
			So(data.CRM, ShouldNotContainKey, model.KindDeal)
		})

		Convey("The Contact payload", func() {
			contact := data.CRM[model.KindContact]
			So(contact["Last_Name"], ShouldEqual, "John Doe")
			So(contact["Lead_Source"], ShouldEqual, "Website")
		})

		Convey("Company is mapped because it is present", func() {
			So(data.CRM[model.KindCompany]["Account_Name"], ShouldEqual, "Example Corp")
		})

		Convey("The original payload is echoed", func() {
			So(res.OriginalPayload, ShouldResemble, in)
		})
	})
}

func TestValidationGate(t *testing.T) {
	Convey("Given a payload without a name", t, func() {
		p := newProcessor()
		in := payload(t, `{"email":"nobody@example.com","eventName":"visualmaker.license.purchase"}`)

		Convey("Process fails with a message naming the field", func() {
			res := p.Process(in)
			So(res.Success, ShouldBeFalse)
			So(res.Error, ShouldContainSubstring, "name")
			So(res.Data, ShouldBeNil)
		})

		Convey("Normalize stops before derivation", func() {
			n, err := p.Normalize(in)
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
			So(n.Validation.IsValid, ShouldBeFalse)
			So(n.Record.Has("domain"), ShouldBeFalse)
			So(n.Record.Has("closing_date"), ShouldBeFalse)
		})
	})

	Convey("A processor without rules reports an error result", t, func() {
		p := New(rules.NewStaticStore(nil))
		res := p.Process(model.Payload{})
		So(res.Success, ShouldBeFalse)
		So(res.Error, ShouldEqual, ErrNoRules.Error())
	})
}

func TestPurchaseFlow(t *testing.T) {
	Convey("Given a purchase payload with product details", t, func() {
		p := newProcessor()
		in := payload(t, `{"webhookTrigger":{"payload":{"eventName":"visualmaker.license.purchase","data":{
			"customerName":"Mark Buyer","firstName":"Mark","lastName":"Buyer","email":"mark@basf.de",
			"category":"certified","subCategory":"single","users":5,"licenseType":"team"}}}}`)

		res := p.Process(in)
		So(res.Success, ShouldBeTrue)
		rec := res.Data.Record

		So(rec["product_name"], ShouldEqual, "Certified - Single License - For team - 1-5 users")
		So(rec["company"], ShouldEqual, "basf.de")
		So(rec["country"], ShouldEqual, "DE")
		So(rec["item_id"], ShouldEqual, "3626086000000085305")

		Convey("The deal carries the classified stage and name", func() {
			So(res.Data.License.EventType, ShouldEqual, model.EventPurchase)
			So(res.Data.Deal["Stage"], ShouldEqual, "Closed Won")
			So(res.Data.Deal["Deal_Name"], ShouldEqual, "Certified - Single License - For team - 1-5 users-CW-20250601")
			So(res.Data.CRM[model.KindProduct]["Product_Name"], ShouldEqual, rec["product_name"])
		})

		Convey("Trial stage depends on contact existence", func() {
			trial := payload(t, `{"eventName":"visualmaker.license.trial","name":"Ann Lee","source":"website"}`)
			n, err := p.Normalize(trial)
			So(err, ShouldBeNil)
			So(p.Build(n, true).License.Stage, ShouldEqual, "Trial - Website")
			So(p.Build(n, false).License.Stage, ShouldEqual, "Trial - Website")

			other := payload(t, `{"eventName":"visualmaker.license.trial","name":"Ann Lee","source":"partner"}`)
			n, err = p.Normalize(other)
			So(err, ShouldBeNil)
			So(p.Build(n, true).License.Stage, ShouldEqual, "Sample - Downloaded")
			So(p.Build(n, false).License.Stage, ShouldEqual, "Trial - License")
		})
	})
}

func TestCatalogHit(t *testing.T) {
	Convey("Catalog hits are reported for known names only", t, func() {
		p := newProcessor()
		So(p.CatalogHit(model.Record{"product_name": "Certified Visuals Suite"}), ShouldBeTrue)
		So(p.CatalogHit(model.Record{"product_name": "Unknown"}), ShouldBeFalse)
		So(p.CatalogHit(model.Record{}), ShouldBeTrue)
	})
}

func TestProperty_Idempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	p := newProcessor()

	events := []string{
		"visualmaker.license.trial", "user.login.activate", "visualmaker.license.purchase",
		"visualmaker.license.renewal", "user.login.register", "",
	}

	properties.Property("processing the same payload twice gives identical output", prop.ForAll(
		func(first, last, company string, eventIdx int, users int) bool {
			in := model.Payload{
				"firstName": first,
				"lastName":  last,
				"email":     first + "@" + company + ".io",
				"company":   company,
				"eventName": events[eventIdx],
				"users":     float64(users),
				"category":  "certified",
			}
			a, errA := json.Marshal(p.Process(in))
			b, errB := json.Marshal(p.Process(in))
			return errA == nil && errB == nil && bytes.Equal(a, b)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Identifier(),
		gen.IntRange(0, len(events)-1),
		gen.IntRange(0, 3000),
	))

	properties.TestingRun(t)
}

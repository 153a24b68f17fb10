package classify

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

var now = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

func classify(rs *rules.RuleSet, rec model.Record, isNew bool) model.ClassifiedEvent {
	return Classify(Input{Record: rec, IsNewContact: isNew, Now: now}, rs)
}

func TestClassifyCategories(t *testing.T) {
	rs := rules.Default()

	Convey("Given the default rule set", t, func() {
		Convey("Unknown events are unmatched", func() {
			ev := classify(rs, model.Record{"event_name": "user.login.register"}, true)
			So(ev.Matched(), ShouldBeFalse)
			So(ev.Stage, ShouldEqual, "")
		})

		Convey("A missing event name is unmatched", func() {
			So(classify(rs, model.Record{}, true).Matched(), ShouldBeFalse)
		})

		Convey("Matching ignores case", func() {
			ev := classify(rs, model.Record{"event_name": "VisualMaker.License.DownloadTrial"}, true)
			So(ev.EventType, ShouldEqual, model.EventTrial)
		})

		Convey("Activation uses the stage table", func() {
			ev := classify(rs, model.Record{"event_name": "user.login.activate"}, false)
			So(ev.EventType, ShouldEqual, model.EventActivation)
			So(ev.Stage, ShouldEqual, "Trial - Activated")
		})

		Convey("Purchase derives stage and deal name", func() {
			ev := classify(rs, model.Record{"event_name": "visualmaker.license.purchase", "product_name": "Gantt"}, false)
			So(ev.EventType, ShouldEqual, model.EventPurchase)
			So(ev.Stage, ShouldEqual, "Closed Won")
			So(ev.DealName, ShouldEqual, "Gantt-CW-20250102")
		})

		Convey("Purchase deal name prefers the deal name and defaults to Deal", func() {
			ev := classify(rs, model.Record{"event_name": "visualmaker.license.purchase", "deal_name": "Big", "product_name": "Gantt"}, false)
			So(ev.DealName, ShouldEqual, "Big-CW-20250102")
			ev = classify(rs, model.Record{"event_name": "visualmaker.license.purchase"}, false)
			So(ev.DealName, ShouldEqual, "Deal-CW-20250102")
		})

		Convey("Fixed-stage categories", func() {
			cases := map[string]struct {
				eventType model.EventType
				stage     string
			}{
				"visualmaker.license.purchaseInitiate": {model.EventPurchaseInitiate, "Purchase Initiated"},
				"visualmaker.license.renewal":          {model.EventRenewal, "Renewal"},
				"visualmaker.license.renewalInitiate":  {model.EventRenewalInitiate, "Renewal Initiated"},
				"visualmaker.license.cancelled":        {model.EventCancellation, "Cancelled"},
			}
			for name, want := range cases {
				ev := classify(rs, model.Record{"event_name": name}, false)
				So(ev.EventType, ShouldEqual, want.eventType)
				So(ev.Stage, ShouldEqual, want.stage)
				So(ev.DealName, ShouldEqual, "")
			}
		})
	})
}

func TestClassifyTrial(t *testing.T) {
	rs := rules.Default()
	trial := func(source string, isNew bool) model.ClassifiedEvent {
		return classify(rs, model.Record{"event_name": "visualmaker.license.trial", "source": source}, isNew)
	}

	Convey("Given trial events", t, func() {
		Convey("New contacts", func() {
			So(trial("Website", true).Stage, ShouldEqual, "Trial - Website")
			So(trial("MP", true).Stage, ShouldEqual, "Sample - MP")
			So(trial("newsletter", true).Stage, ShouldEqual, "Sample - Downloaded")
			So(trial("", true).Stage, ShouldEqual, "Sample - Downloaded")
		})

		Convey("Existing contacts", func() {
			So(trial("PBI Marketplace", false).Stage, ShouldEqual, "Sample - MP")
			So(trial("SPZA", false).Stage, ShouldEqual, "Sample - MP")
			So(trial("website", false).Stage, ShouldEqual, "Trial - Website")
			So(trial("newsletter", false).Stage, ShouldEqual, "Trial - License")
		})

		Convey("Sources are normalized", func() {
			So(trial("website", true).Source, ShouldEqual, "Website")
			So(trial("Marketplace", true).Source, ShouldEqual, "PBI Marketplace")
			So(trial("mp", true).Source, ShouldEqual, "PBI Marketplace")
			So(trial("Partner", true).Source, ShouldEqual, "Partner")
			So(trial("", true).Source, ShouldEqual, "Webhook")
		})
	})
}

func TestClassifyPrecedence(t *testing.T) {
	Convey("Given an event listed under several categories", t, func() {
		rs, warnings, err := rules.Parse([]byte(`{
			"licenseEventRules": {
				"cancellationEvents": ["dup.event"],
				"purchaseEvents": ["dup.event"],
				"trialEvents": ["dup.event"]
			},
			"stageMapping": {"purchase": {"completed": "Won"}}
		}`), rules.FormatJSON)
		So(err, ShouldBeNil)
		So(warnings, ShouldNotBeEmpty)

		Convey("The first category in priority order wins", func() {
			ev := classify(rs, model.Record{"event_name": "dup.event"}, true)
			So(ev.EventType, ShouldEqual, model.EventTrial)
		})

		Convey("Without the trial entry, purchase beats cancellation", func() {
			rs2, _, err := rules.Parse([]byte(`{
				"licenseEventRules": {"cancellationEvents": ["dup.event"], "purchaseEvents": ["dup.event"]},
				"stageMapping": {"purchase": {"completed": "Won"}}
			}`), rules.FormatJSON)
			So(err, ShouldBeNil)
			ev := classify(rs2, model.Record{"event_name": "dup.event"}, true)
			So(ev.EventType, ShouldEqual, model.EventPurchase)
			So(ev.Stage, ShouldEqual, "Won")
		})
	})
}

func TestPurchaseStage(t *testing.T) {
	Convey("Purchase stage follows the event name", t, func() {
		p := rules.PurchaseStages{Completed: "Closed Won", Initiated: "Purchase Initiated"}
		So(PurchaseStage("x.purchase.completed", p), ShouldEqual, "Closed Won")
		So(PurchaseStage("x.purchase.initiated", p), ShouldEqual, "Purchase Initiated")
		So(PurchaseStage("x.purchase", p), ShouldEqual, "Closed Won")
	})
}

package transform

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/rules"
)

func TestTitleCase(t *testing.T) {
	Convey("Title case works word by word", t, func() {
		So(TitleCase("jOHN doe"), ShouldEqual, "John Doe")
		So(TitleCase("  mary-ann  o'neil "), ShouldEqual, "  Mary-ann  O'neil ")
		So(TitleCase("élodie"), ShouldEqual, "Élodie")
		So(TitleCase(""), ShouldEqual, "")
	})
}

func TestApply(t *testing.T) {
	Convey("Given individual rules", t, func() {
		Convey("Steps run in fixed order", func() {
			rule := rules.TransformRule{Trim: true, ToLowerCase: true, TitleCase: true}
			So(Apply("  hELLO wORLD ", rule), ShouldEqual, "Hello World")
		})

		Convey("Phone cleanup keeps digits and plus", func() {
			rule := rules.TransformRule{RemoveSpaces: true, RemoveSpecialChars: true}
			So(Apply("+1 (555) 010-9999", rule), ShouldEqual, "+15550109999")
		})

		Convey("Country code is only prepended without a leading plus", func() {
			rule := rules.TransformRule{AddCountryCode: "+49"}
			So(Apply("1701234", rule), ShouldEqual, "+491701234")
			So(Apply("+441701234", rule), ShouldEqual, "+441701234")
		})

		Convey("Protocol is only prepended when missing", func() {
			rule := rules.TransformRule{AddProtocol: "https"}
			So(Apply("example.com", rule), ShouldEqual, "https://example.com")
			So(Apply("http://example.com", rule), ShouldEqual, "http://example.com")
		})
	})
}

func TestTransform(t *testing.T) {
	rs := rules.Default()

	Convey("Given an extracted record", t, func() {
		in := model.Record{
			"first_name": "John",
			"last_name":  "Doe",
			"email":      "  John@Example.COM ",
			"phone":      "+1 555 0100",
			"company":    "",
		}
		out := Transform(in, rs)

		Convey("Name is synthesized from first and last name", func() {
			So(out["name"], ShouldEqual, "John Doe")
		})

		Convey("Field rules are applied", func() {
			So(out["email"], ShouldEqual, "john@example.com")
			So(out["phone"], ShouldEqual, "+15550100")
		})

		Convey("Empty fields are skipped", func() {
			So(out["company"], ShouldEqual, "")
		})

		Convey("The input record is untouched", func() {
			So(in.Has("name"), ShouldBeFalse)
			So(in["email"], ShouldEqual, "  John@Example.COM ")
		})
	})

	Convey("An existing name is not replaced", t, func() {
		out := Transform(model.Record{"name": "ada lovelace", "first_name": "X"}, rs)
		So(out["name"], ShouldEqual, "Ada Lovelace")
	})

	Convey("A lone last name becomes the name", t, func() {
		out := Transform(model.Record{"last_name": "Doe"}, rs)
		So(out["name"], ShouldEqual, "Doe")
	})
}

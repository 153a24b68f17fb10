// Package webhookgen generates fake license webhooks and replays them
// against a running service.
package webhookgen

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/okian/crmflow/internal/domain/derive"
	"github.com/okian/crmflow/internal/domain/model"
)

var eventNames = []string{ //nolint:gochecknoglobals
	"user.login.register",
	"user.login.activate",
	"visualmaker.license.trial",
	"visualmaker.license.downloadTrial",
	"visualmaker.license.purchase",
	"visualmaker.license.purchaseCompleted",
	"visualmaker.license.purchaseInitiate",
	"visualmaker.license.renewal",
	"visualmaker.license.renewalInitiate",
	"visualmaker.license.cancel",
}

var (
	sources      = []string{"website", "mp", "marketplace", "powerbi", "spza"}  //nolint:gochecknoglobals
	categories   = []string{"certified", "uncertified"}                         //nolint:gochecknoglobals
	packageTypes = []string{"single", "suite"}                                  //nolint:gochecknoglobals
	userCounts   = []string{"unlimited", "5", "20", "50", "100", "250", "1000"} //nolint:gochecknoglobals
	licenseTypes = []string{"Standard", "Enterprise"}                           //nolint:gochecknoglobals
	actionCodes  = []string{"DOWNLOAD", "TRIAL", "CONTACT"}                     //nolint:gochecknoglobals
)

var shapes = []string{ShapeEnveloped, ShapeAlternate, ShapeFlat} //nolint:gochecknoglobals

// Generator produces webhook bodies in every supported layout. It is not
// safe for concurrent use.
type Generator struct {
	faker  *gofakeit.Faker
	offers []string
}

// NewGenerator returns a generator seeded with seed. A zero seed picks a
// random one.
func NewGenerator(seed int64) *Generator {
	entries := derive.DefaultCatalog().Entries()
	offers := make([]string, 0, len(entries))
	for _, e := range entries {
		offers = append(offers, e.Name)
	}
	return &Generator{faker: gofakeit.New(seed), offers: offers}
}

// Generate returns n webhooks cycling through the three layouts.
func (g *Generator) Generate(n int) []Webhook {
	out := make([]Webhook, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next(shapes[i%len(shapes)]))
	}
	return out
}

// Next builds one webhook of the given layout with a fresh delivery id.
func (g *Generator) Next(shape string) Webhook {
	p := g.person()
	var body model.Payload
	switch shape {
	case ShapeAlternate:
		body = g.alternate(p)
	case ShapeFlat:
		body = g.fields(p)
		body["eventName"] = g.faker.RandomString(eventNames)
	default:
		shape = ShapeEnveloped
		body = model.Payload{
			"webhookTrigger": map[string]any{
				"payload": map[string]any{
					"data":      g.fields(p),
					"eventName": g.faker.RandomString(eventNames),
				},
			},
		}
	}
	return Webhook{ID: uuid.NewString(), Shape: shape, Body: body}
}

type person struct {
	first, last string
	email       string
	phone       string
	company     string
	country     string
	title       string
}

func (g *Generator) person() person {
	first := g.faker.FirstName()
	last := g.faker.LastName()
	local := sanitize(first) + "." + sanitize(last)
	if local == "." {
		local = "user" + g.faker.Numerify("####")
	}
	return person{
		first:   first,
		last:    last,
		email:   local + "@" + sanitize(g.faker.Company()) + ".example.com",
		phone:   g.faker.Numerify("1##########"),
		company: g.faker.Company(),
		country: g.faker.Country(),
		title:   g.faker.JobTitle(),
	}
}

func (g *Generator) fields(p person) model.Payload {
	return model.Payload{
		"firstName":   p.first,
		"lastName":    p.last,
		"email":       p.email,
		"phone":       p.phone,
		"company":     p.company,
		"country":     p.country,
		"website":     "www." + sanitize(p.company) + ".example.com",
		"source":      g.faker.RandomString(sources),
		"offerTitle":  g.faker.RandomString(g.offers),
		"category":    g.faker.RandomString(categories),
		"subCategory": g.faker.RandomString(packageTypes),
		"users":       g.faker.RandomString(userCounts),
		"licenseType": g.faker.RandomString(licenseTypes),
		"dealAmount":  float64(g.faker.Number(49, 4999)),
		"message":     g.faker.Sentence(8),
	}
}

func (g *Generator) alternate(p person) model.Payload {
	return model.Payload{
		"UserDetails": map[string]any{
			"FirstName": p.first,
			"LastName":  p.last,
			"Email":     p.email,
			"Phone":     p.phone,
			"Country":   p.country,
			"Company":   p.company,
			"Title":     p.title,
		},
		"LeadSource":  g.faker.RandomString(sources),
		"ActionCode":  g.faker.RandomString(actionCodes),
		"OfferTitle":  g.faker.RandomString(g.offers),
		"Description": g.faker.Sentence(8),
	}
}

// sanitize keeps lowercase letters and digits so generated addresses pass
// the default email pattern.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package derive

import "strings"

var genericTLDs = map[string]struct{}{ //nolint:gochecknoglobals
	"com": {}, "org": {}, "io": {}, "net": {}, "world": {},
}

// publicMailLabels are first labels that mark a webmail provider whatever
// the TLD.
var publicMailLabels = map[string]struct{}{ //nolint:gochecknoglobals
	"gmail": {}, "yahoo": {}, "hotmail": {}, "msn": {}, "outlook": {}, "zoho": {},
}

// publicDomains are webmail, SaaS and throwaway domains that say nothing
// about the sender's company.
var publicDomains = toSet([]string{ //nolint:gochecknoglobals
	"accounts.google.com", "data.tableau.com", "fastmail.fm", "google.com", "mail.angel.co",
	"mail.support.microsoft.com", "marketing.angel.co", "messaging.squareup.com",
	"quora.com", "sharepointonline.com", "stripe.com", "triberr.com",
	"us-east-2.amazonses.com", "us-east-2.email-abuse.amazonses.com", "youtube.com",
	"000700.com", "06111991.onmicrosoft.com", "1010space.onmicrosoft.com", "1030.be",
	"1031crowdfunding.com", "10over10.com.tw", "10vip.top", "10xds.com",
	"10xdsdata.onmicrosoft.com", "110.is", "110ftu.onmicrosoft.com", "123milhas.com.br",
	"127.co.nz", "13070173983163.onmicrosoft.com", "139.com", "1500fh.com", "177happy.com",
	"1ddp.in", "1go.ph", "1und1.de", "247international.net", "2801123618.onmicrosoft.com",
	"2be.cr", "2-m.fr", "2mr7xd.onmicrosoft.com", "321.ca", "360inclusive.com", "365d.fun",
	"365i.team", "365-office.club", "365svip.ru", "365v.me", "365vip.pro", "39s.top",
	"3asport.it", "3is.fr", "3l.ru", "3mjb5h.onmicrosoft.com", "3qtv.onmicrosoft.com",
	"3scsolution.com", "3shape.com", "3sixtyintegrated.com", "3wm.ma", "477home.org",
	"4service.net", "5040096080.onmicrosoft.com", "50hpvp.onmicrosoft.com",
	"51zyjiaoyu.com", "548ck2.onmicrosoft.com", "5k2u.com", "6069.com", "60decibels.com",
	"7-11.com", "75f.io", "76a.cn", "76ers.com", "7gdistributing.com",
	"7kqxfj.onmicrosoft.com", "8advisory.com", "9pay.vn", "a.de", "0px5v.onmicrosoft.com",
	"123.com", "126.com", "163.com", "tempemail.in", "tmail.com", "365e.live", "email.in",
	"emailkom.live", "mail.jusdascm.com", "vatanmail.ir", "altmails.com", "ccmail.uk",
	"chmail.ir", "freemail.hu", "gmal.com", "googlemail.com", "icloud.com", "icoud.com",
	"kkumail.com", "mail.ee", "mail.ru", "mailonline.co.uk", "msn.cn", "msn.com",
	"protonmail.com", "qq.com", "yandex.ru", "yopmail.com", "live.be", "live.cn",
	"live.co.uk", "live.com", "live.fi", "live.fr", "live.in", "live.is", "live.ku.th",
	"live.nl", "live.no", "live.ru", "0-1.ir", "123.ie",
})

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}

// Domain returns the part of email after the first '@', or "".
func Domain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// CountryFromEmail upper-cases the TLD of the email domain. Generic TLDs
// carry no country and return "".
func CountryFromEmail(email string) string {
	domain := Domain(email)
	if domain == "" {
		return ""
	}
	labels := strings.Split(domain, ".")
	tld := labels[len(labels)-1]
	if _, generic := genericTLDs[tld]; generic {
		return ""
	}
	return strings.ToUpper(tld)
}

// CompanyFromEmail guesses a company from the email domain. Public
// providers return "". For .com domains the TLD is dropped; any other
// domain is returned whole.
func CompanyFromEmail(email string) string {
	domain := Domain(email)
	if domain == "" {
		return ""
	}
	labels := strings.Split(domain, ".")
	if _, public := publicDomains[domain]; public {
		return ""
	}
	if _, public := publicMailLabels[labels[0]]; public {
		return ""
	}
	if labels[len(labels)-1] == "com" {
		return strings.Join(labels[:len(labels)-1], ".")
	}
	return domain
}

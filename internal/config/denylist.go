package config

// sensitiveGroups is the curated set of services whose pages are never
// captured: money, credentials, health records, government identity and
// private communication.
var sensitiveGroups = []struct {
	name    string
	domains []string
}{
	{"banking", []string{
		"chase.com", "bankofamerica.com", "wellsfargo.com", "citi.com", "usbank.com",
		"capitalone.com", "ally.com", "schwab.com", "fidelity.com", "vanguard.com",
		"navyfederal.org", "pnc.com", "truist.com",
	}},
	{"payments", []string{
		"paypal.com", "venmo.com", "zelle.com", "cash.app", "stripe.com",
	}},
	{"crypto", []string{
		"coinbase.com", "binance.com", "kraken.com", "gemini.com",
	}},
	{"passwords", []string{
		"1password.com", "lastpass.com", "bitwarden.com", "dashlane.com", "keepersecurity.com",
	}},
	{"identity", []string{
		"accounts.google.com", "login.microsoftonline.com", "login.live.com",
		"auth0.com", "okta.com", "duo.com", "id.me", "login.gov",
	}},
	{"health", []string{
		"mychart.com", "patient.myhealth.com", "member.cigna.com", "member.aetna.com",
		"member.uhc.com", "kp.org", "healthcare.gov", "medicare.gov",
	}},
	{"government", []string{
		"irs.gov", "ssa.gov", "turbotax.intuit.com", "hrblock.com",
	}},
	{"messaging", []string{
		"mail.google.com", "outlook.live.com", "outlook.office.com", "web.whatsapp.com",
		"messages.google.com", "web.telegram.org", "app.slack.com",
	}},
	{"payroll", []string{
		"workday.com", "adp.com", "gusto.com", "paychex.com",
	}},
}

// DefaultDenylistDomains returns the curated sensitive-domain list. Subdomains
// of each entry are excluded too.
func DefaultDenylistDomains() []string {
	var out []string
	for _, g := range sensitiveGroups {
		out = append(out, g.domains...)
	}
	return out
}

// DenylistGroup names the curated group a domain belongs to, or "" when the
// domain is not on the default list.
func DenylistGroup(domain string) string {
	for _, g := range sensitiveGroups {
		for _, d := range g.domains {
			if d == domain {
				return g.name
			}
		}
	}
	return ""
}

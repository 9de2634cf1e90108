package analysis

import (
	"strings"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

type categoryRule struct {
	category behavior.Category
	domains  []string
}

// categoryTable is matched top to bottom and the first rule containing a
// matching substring wins, so the order decides overlaps (for example
// news.ycombinator.com is technology, not news). "x.com" is deliberately
// absent: as a substring it would also match netflix.com and dropbox.com.
var categoryTable = []categoryRule{
	{behavior.CategoryTechnology, []string{"github.com", "stackoverflow.com", "news.ycombinator.com", "techcrunch.com", "theverge.com", "dev.to"}},
	{behavior.CategorySocial, []string{"twitter.com", "facebook.com", "instagram.com", "linkedin.com", "reddit.com", "tiktok.com"}},
	{behavior.CategoryNews, []string{"cnn.com", "bbc.com", "nytimes.com", "reuters.com", "foxnews.com", "theguardian.com"}},
	{behavior.CategoryEntertainment, []string{"youtube.com", "netflix.com", "spotify.com", "twitch.tv", "hulu.com"}},
	{behavior.CategoryEducation, []string{"coursera.org", "khanacademy.org", "edx.org", "wikipedia.org", "udemy.com"}},
	{behavior.CategoryShopping, []string{"amazon.com", "ebay.com", "etsy.com", "walmart.com", "target.com"}},
	{behavior.CategoryHealth, []string{"webmd.com", "mayoclinic.org", "healthline.com", "nih.gov", "medlineplus.gov"}},
	{behavior.CategoryFinance, []string{"bloomberg.com", "wsj.com", "finance.yahoo.com", "investopedia.com", "marketwatch.com"}},
}

// Categorize maps a domain to a category by substring lookup in
// categoryTable, falling back to general.
func Categorize(domain string) behavior.Category {
	domain = strings.ToLower(domain)
	for _, rule := range categoryTable {
		for _, d := range rule.domains {
			if strings.Contains(domain, d) {
				return rule.category
			}
		}
	}
	return behavior.CategoryGeneral
}

package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/runnerr0/mirrorme/internal/analysis"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

type classifyTextJSON struct {
	Sentiment     behavior.Sentiment `json:"sentiment"`
	PoliticalTilt behavior.Tilt      `json:"political_tilt"`
	Confidence    float64            `json:"confidence"`
	Keywords      []string           `json:"keywords"`
}

type classifyURLJSON struct {
	Domain   string            `json:"domain"`
	Category behavior.Category `json:"category"`
	Keywords []string          `json:"keywords"`
}

// Execute implements the go-flags Commander interface for ClassifyCommand.
func (c *ClassifyCommand) Execute(args []string) error {
	if c.URL != "" {
		return c.classifyURL(c.URL)
	}
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text or --url is required")
	}
	return c.classifyText(text)
}

func (c *ClassifyCommand) classifyText(text string) error {
	res := analysis.Classify(text)
	keywords := analysis.Extract(text)

	if wantJSON(c.globals) {
		return printJSON(classifyTextJSON{
			Sentiment:     res.Sentiment,
			PoliticalTilt: res.PoliticalTilt,
			Confidence:    res.Confidence,
			Keywords:      keywords,
		})
	}
	fmt.Printf("Sentiment:     %s\n", res.Sentiment)
	fmt.Printf("Tilt:          %s\n", res.PoliticalTilt)
	fmt.Printf("Confidence:    %.2f\n", res.Confidence)
	fmt.Printf("Keywords:      %s\n", strings.Join(keywords, ", "))
	return nil
}

func (c *ClassifyCommand) classifyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("invalid --url %q", raw)
	}
	domain := analysis.Domain(u)
	out := classifyURLJSON{
		Domain:   domain,
		Category: analysis.Categorize(domain),
		Keywords: analysis.ExtractFromURL(u),
	}

	if wantJSON(c.globals) {
		return printJSON(out)
	}
	fmt.Printf("Domain:        %s\n", out.Domain)
	fmt.Printf("Category:      %s\n", out.Category)
	fmt.Printf("Keywords:      %s\n", strings.Join(out.Keywords, ", "))
	return nil
}

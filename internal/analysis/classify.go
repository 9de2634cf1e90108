// Package analysis holds the deterministic text and domain heuristics used to
// label captured behavior: sentiment and political-lean classification, domain
// categorization and keyword extraction. Every function is total.
package analysis

import (
	"strings"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

// Result is the output of Classify.
type Result struct {
	Sentiment     behavior.Sentiment
	PoliticalTilt behavior.Tilt
	Confidence    float64
}

var (
	positiveWords = wordSet(
		"good", "great", "excellent", "amazing", "awesome", "love", "like",
		"best", "happy", "wonderful", "fantastic", "perfect", "beautiful",
		"brilliant", "nice", "glad", "enjoy", "success", "win", "thanks",
	)
	negativeWords = wordSet(
		"bad", "terrible", "awful", "hate", "worst", "horrible", "sad",
		"angry", "disgusting", "disappointing", "poor", "fail", "failure",
		"wrong", "ugly", "stupid", "annoying", "broken", "useless", "problem",
	)
	leftWords = wordSet(
		"progressive", "liberal", "democrat", "democrats", "equality",
		"climate", "socialism", "union", "diversity", "inclusion",
		"welfare", "reform", "immigration", "healthcare", "regulation",
	)
	rightWords = wordSet(
		"conservative", "republican", "republicans", "tradition", "freedom",
		"liberty", "patriot", "border", "taxes", "military", "capitalism",
		"constitution", "deregulation", "gun", "guns",
	)
	neutralWords = wordSet(
		"maybe", "perhaps", "possibly", "somewhat", "okay", "average",
		"fine", "moderate", "unclear", "report", "according", "reportedly",
	)
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Classify labels text with a sentiment, a political tilt and a density-based
// confidence. Tokens are whitespace separated and lower-cased; only exact
// matches against the word sets count.
//
// confidence = min(1, (sentiment hits + political hits) / tokens * 10), where
// neutral hedge words count as sentiment hits.
func Classify(text string) Result {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return Result{
			Sentiment:     behavior.SentimentNeutral,
			PoliticalTilt: behavior.TiltNeutral,
			Confidence:    0,
		}
	}

	var pos, neg, neutral, left, right int
	for _, tok := range tokens {
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
		if _, ok := negativeWords[tok]; ok {
			neg++
		}
		if _, ok := neutralWords[tok]; ok {
			neutral++
		}
		if _, ok := leftWords[tok]; ok {
			left++
		}
		if _, ok := rightWords[tok]; ok {
			right++
		}
	}

	res := Result{
		Sentiment:     behavior.SentimentNeutral,
		PoliticalTilt: behavior.TiltNeutral,
	}
	switch {
	case pos > neg:
		res.Sentiment = behavior.SentimentPositive
	case neg > pos:
		res.Sentiment = behavior.SentimentNegative
	}
	switch {
	case left > right:
		res.PoliticalTilt = behavior.TiltLeft
	case right > left:
		res.PoliticalTilt = behavior.TiltRight
	}

	hits := float64(pos + neg + neutral + left + right)
	res.Confidence = hits / float64(len(tokens)) * 10
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	return res
}

// Apply copies r onto ev.
func (r Result) Apply(ev behavior.Event) behavior.Event {
	return ev.WithAnalysis(r.Sentiment, r.PoliticalTilt, r.Confidence)
}

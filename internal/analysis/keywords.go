package analysis

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxTextKeywords = 15
	maxURLKeywords  = 10
	minKeywordRunes = 3
)

var stopWords = wordSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
	"her", "was", "one", "our", "out", "has", "have", "him", "his", "how",
	"its", "may", "new", "now", "see", "who", "did", "get", "let", "say",
	"she", "too", "use", "this", "that", "with", "from", "they", "will",
	"been", "what", "when", "your", "there", "which", "their", "would",
	"about", "into", "than", "then", "them", "were",
)

// Extract returns up to 15 deduplicated keywords from text in first-seen
// order. Punctuation is removed, tokens shorter than three runes and stop
// words are dropped.
func Extract(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			return r
		}
		return -1
	}, strings.ToLower(text))

	var out []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) < minKeywordRunes {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == maxTextKeywords {
			break
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// ExtractFromURL returns up to 10 keywords describing u: the hostname without
// "www.", path segments longer than two characters, then the words of the q
// search parameter.
func ExtractFromURL(u *url.URL) []string {
	out := []string{}
	if u == nil {
		return out
	}
	seen := make(map[string]struct{})
	add := func(k string) bool {
		if _, dup := seen[k]; dup {
			return len(out) < maxURLKeywords
		}
		seen[k] = struct{}{}
		out = append(out, k)
		return len(out) < maxURLKeywords
	}

	if host := Domain(u); host != "" && !add(host) {
		return out
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if utf8.RuneCountInString(seg) < minKeywordRunes {
			continue
		}
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		if !add(seg) {
			return out
		}
	}
	if q := u.Query().Get("q"); q != "" {
		for _, w := range strings.Fields(q) {
			if utf8.RuneCountInString(w) < minKeywordRunes {
				continue
			}
			if !add(w) {
				return out
			}
		}
	}
	return out
}

// Domain returns the lower-cased hostname of u without a leading "www.".
func Domain(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

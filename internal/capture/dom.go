package capture

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// first returns the first match of the first selector that matches.
func first(root *html.Node, sels ...cascadia.Selector) *html.Node {
	if root == nil {
		return nil
	}
	for _, sel := range sels {
		if n := sel.MatchFirst(root); n != nil {
			return n
		}
	}
	return nil
}

// textContent concatenates the text nodes under n, skipping scripts and
// styles, and collapses whitespace.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// parseFragment parses a serialized node (outerHTML) under a body context.
// Custom elements such as ytd-comment-renderer parse as ordinary elements.
// Unparseable input yields an empty body.
func parseFragment(src string) *html.Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return body
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body
}

// parseDocument parses a full page. Unparseable input yields an empty
// document.
func parseDocument(src string) *html.Node {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return &html.Node{Type: html.DocumentNode}
	}
	return doc
}

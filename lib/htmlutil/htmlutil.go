package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var tracer = otel.Tracer("tenderscrape/lib/htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && skipped[node.Data] {
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeSpace collapses every run of whitespace into a single space and
// trims the ends.
func NormalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = removeNonPrintable(s)
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

// CleanText strips markup from an html fragment and returns its normalized
// text. Plain text passes through with only whitespace normalization.
func CleanText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return NormalizeSpace(fragment)
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return NormalizeSpace(fragment)
	}
	var buffer bytes.Buffer
	for _, n := range nodes {
		getTextRecursive(n, &buffer)
	}
	return NormalizeSpace(buffer.String())
}

var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
}

var blocks = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "caption": true, "dd": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "legend": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "tr": true, "ul": true,
}

// BlockLines flattens the text under node into lines, breaking at every
// block level element. Empty lines are dropped.
func BlockLines(node *html.Node) []string {
	var buffer bytes.Buffer
	blockLinesRecursive(node, &buffer)

	var lines []string
	for _, line := range strings.Split(buffer.String(), "\n") {
		line = NormalizeSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func blockLinesRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(strings.ReplaceAll(node.Data, "\n", " "))
		return
	case html.ElementNode:
		if skipped[node.Data] {
			return
		}
	}
	isBlock := node.Type == html.ElementNode && blocks[node.Data]
	if isBlock {
		buffer.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		blockLinesRecursive(child, buffer)
	}
	if isBlock {
		buffer.WriteByte('\n')
	}
}

type Anchor struct {
	Name    string
	Href    string
	Type    string
	OnClick string
}

// GetAnchors collects the anchors in sel, hrefs that do not parse as urls are skipped.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		var href, mime, onclick string
		for _, a := range n.Attr {
			switch a.Key {
			case "href":
				href = a.Val
			case "type":
				mime = a.Val
			case "onclick":
				onclick = a.Val
			}
		}

		link, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := NormalizeSpace(GetText(n))
		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name:    name,
			Href:    linkStr,
			Type:    mime,
			OnClick: onclick,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}

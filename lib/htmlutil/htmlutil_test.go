package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestCleanText(t *testing.T) {
	table := []struct {
		in       string
		expected string
	}{
		{in: "plain   text\n", expected: "plain text"},
		{in: "<b>Roads</b> &amp; <i>Buildings</i>", expected: "Roads & Buildings"},
		{in: "<span>  R&amp;B Dept </span>", expected: "R&B Dept"},
		{in: "<script>alert(1)</script>visible", expected: "visible"},
		{in: "", expected: ""},
	}
	for _, test := range table {
		require.Equal(t, test.expected, CleanText(test.in), test.in)
	}
}

func TestBlockLines(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><head><title>x</title></head><body>
		<h3>Eligibility</h3>
		<p>Registered <b>class A</b> contractors.</p>
		<table><tr><td>EMD</td><td>Rs. 1,000</td></tr></table>
	</body></html>`))
	require.NoError(t, err)

	require.Equal(t, []string{
		"Eligibility",
		"Registered class A contractors.",
		"EMD",
		"Rs. 1,000",
	}, BlockLines(doc))
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div>
		<a href="/files/a.pdf" type="application/pdf"> Tender
			Notice </a>
		<a href="#" onclick="openWin('1','2')">View</a>
	</div>`))
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Len(t, anchors, 2)
	require.Equal(t, Anchor{Name: "Tender Notice", Href: "/files/a.pdf", Type: "application/pdf"}, anchors[0])
	require.Equal(t, "openWin('1','2')", anchors[1].OnClick)
}

package portal

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// column positions of a listing row
const (
	colDepartment = iota
	colNoticeNumber
	colCategory
	colTitle
	colValue
	colPublished
	colBidOpen
	colBidClose
	colTenderID
	colActions

	ColumnCount
)

// ParseRow turns one listing row into a record, row is its position in the
// listing. Cells may carry inline markup.
func ParseRow(cells []string, row int) (tender.Record, error) {
	if len(cells) < ColumnCount {
		padded := make([]string, ColumnCount)
		copy(padded, cells)
		cells = padded
	}

	record := tender.Record{
		Department:    htmlutil.CleanText(cells[colDepartment]),
		NoticeNumber:  htmlutil.CleanText(cells[colNoticeNumber]),
		Category:      htmlutil.CleanText(cells[colCategory]),
		Title:         htmlutil.CleanText(cells[colTitle]),
		Value:         htmlutil.CleanText(cells[colValue]),
		PublishedDate: htmlutil.CleanText(cells[colPublished]),
		BidOpenDate:   htmlutil.CleanText(cells[colBidOpen]),
		BidCloseDate:  htmlutil.CleanText(cells[colBidClose]),
		TenderID:      htmlutil.CleanText(cells[colTenderID]),
		Nav:           ExtractNavTokens(cells[colActions]),
	}
	err := record.Validate(row)
	if err != nil {
		return tender.Record{}, err
	}
	return record, nil
}

var (
	jsCallRegex = regexp.MustCompile(`[A-Za-z_$][\w$.]*\s*\(`)
	// one argument and the separator after it; quoted arguments may hold commas and parens
	jsArgRegex = regexp.MustCompile(`^\s*(?:'([^']*)'|"([^"]*)"|([^,()'"\s]*))\s*([,)])`)
)

func actionScripts(fragment string) []string {
	if !strings.Contains(fragment, "<") {
		return []string{html.UnescapeString(fragment)}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return []string{html.UnescapeString(fragment)}
	}

	var scripts []string
	doc.Find("[onclick], a[href]").Each(func(_ int, sel *goquery.Selection) {
		if onclick, ok := sel.Attr("onclick"); ok {
			scripts = append(scripts, onclick)
		}
		href, _ := sel.Attr("href")
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			unescaped, err := url.PathUnescape(href)
			if err != nil {
				unescaped = href
			}
			scripts = append(scripts, unescaped)
		}
	})
	return scripts
}

// ExtractNavTokens pulls the arguments out of the first javascript call in an
// action cell that carries two or three of them, for example
// GetTenderInfo('123','A','R-9') or openWin("123", "A").
func ExtractNavTokens(fragment string) tender.NavTokens {
	for _, script := range actionScripts(fragment) {
		for _, loc := range jsCallRegex.FindAllStringIndex(script, -1) {
			tokens := callArgs(script[loc[1]:])
			if len(tokens) >= 2 && len(tokens) <= 3 && tokens[0] != "" {
				return tokens
			}
		}
	}
	return nil
}

// callArgs reads arguments up to the closing paren of a call. It returns nil
// when the argument list does not parse.
func callArgs(rest string) tender.NavTokens {
	var tokens tender.NavTokens
	for {
		match := jsArgRegex.FindStringSubmatch(rest)
		if match == nil {
			return nil
		}
		tokens = append(tokens, match[1]+match[2]+match[3])
		rest = rest[len(match[0]):]
		if match[4] == ")" {
			return tokens
		}
	}
}

var errNoNavigation = errors.New("record has no navigation tokens")

// DetailURL builds the absolute address of a detail view from its navigation tokens.
func (c *Client) DetailURL(nav tender.NavTokens) (string, error) {
	if len(nav) == 0 {
		return "", scrapeerr.Parse(report_client_fetch_detail, errNoNavigation)
	}
	query := url.Values{}
	for i, token := range nav {
		name := fmt.Sprintf("p%d", i)
		if i < len(c.detailParams) {
			name = c.detailParams[i]
		}
		query.Set(name, token)
	}
	ref := &url.URL{Path: DetailPath, RawQuery: query.Encode()}
	return c.BaseUrl.ResolveReference(ref).String(), nil
}

package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
)

// Page is one raw window of the listing as the endpoint returned it.
type Page struct {
	Echo  int64
	Total int
	Rows  [][]string
}

// flexInt accepts numbers that are sometimes sent as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", b)
	}
	*f = flexInt(n)
	return nil
}

type listingResponse struct {
	Echo         flexInt              `json:"sEcho"`
	TotalRecords flexInt              `json:"iTotalRecords"`
	TotalDisplay *flexInt             `json:"iTotalDisplayRecords"`
	Data         *[][]json.RawMessage `json:"aaData"`
}

func cellString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return string(raw)
}

// sortable reports whether the listing endpoint accepts col as a sort column,
// the tender id and action columns are not.
func sortable(col int) bool {
	return col >= 0 && col < colTenderID
}

func listingPayload(q tender.PageQuery, echo int64) url.Values {
	dir := q.SortDir
	if dir == "" {
		dir = tender.SortAsc
	}

	v := url.Values{}
	v.Set("sEcho", strconv.FormatInt(echo, 10))
	v.Set("iColumns", strconv.Itoa(ColumnCount))
	v.Set("sColumns", strings.Repeat(",", ColumnCount-1))
	v.Set("iDisplayStart", strconv.Itoa(q.Offset))
	v.Set("iDisplayLength", strconv.Itoa(q.PageSize))
	for i := 0; i < ColumnCount; i++ {
		col := strconv.Itoa(i)
		v.Set("mDataProp_"+col, col)
		v.Set("sSearch_"+col, q.Filters[i])
		v.Set("bRegex_"+col, "false")
		v.Set("bSearchable_"+col, "true")
		v.Set("bSortable_"+col, strconv.FormatBool(sortable(i)))
	}
	v.Set("sSearch", q.Search)
	v.Set("bRegex", "false")
	v.Set("iSortCol_0", strconv.Itoa(q.SortColumn))
	v.Set("sSortDir_0", string(dir))
	v.Set("iSortingCols", "1")
	return v
}

func validateQuery(q tender.PageQuery) error {
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be within 1..%d, got %d", MaxPageSize, q.PageSize)
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", q.Offset)
	}
	if !sortable(q.SortColumn) {
		return fmt.Errorf("column %d is not sortable", q.SortColumn)
	}
	switch q.SortDir {
	case "", tender.SortAsc, tender.SortDesc:
	default:
		return fmt.Errorf("unknown sort direction %q", q.SortDir)
	}
	for col := range q.Filters {
		if col < 0 || col >= ColumnCount {
			return fmt.Errorf("filter on unknown column %d", col)
		}
	}
	return nil
}

var errHtmlPayload = errors.New("received an html page instead of json")

// FetchPage requests one window of the listing. Rows are returned as the
// server sent them, at most q.PageSize of them.
func (c *Client) FetchPage(ctx context.Context, q tender.PageQuery) (Page, error) {
	ctx, span := tracer.Start(ctx, "FetchPage")
	defer span.End()
	span.SetAttributes(
		attribute.Int("offset", q.Offset),
		attribute.Int("page_size", q.PageSize),
	)

	err := validateQuery(q)
	if err != nil {
		return Page{}, err
	}

	page, err := withSession(ctx, c, report_client_fetch_page, func(ctx context.Context) (Page, error) {
		echo := c.echo.Add(1)
		res, err := c.Http.R().
			SetContext(ctx).
			SetHeaders(map[string]string{
				"accept":           "application/json, text/javascript, */*; q=0.01",
				"x-requested-with": "XMLHttpRequest",
				"origin":           c.origin(),
				"referer":          c.origin() + LandingPath,
			}).
			SetFormDataFromValues(listingPayload(q, echo)).
			Post(ListingPath)
		if err != nil {
			return Page{}, scrapeerr.Network(report_client_fetch_page, err)
		}
		return c.decodeListing(res, echo, q.PageSize)
	})
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_page, err, q.Offset, q.PageSize)
		return Page{}, err
	}
	span.SetAttributes(attribute.Int("rows", len(page.Rows)), attribute.Int("total", page.Total))
	return page, nil
}

func (c *Client) origin() string {
	return (&url.URL{Scheme: c.BaseUrl.Scheme, Host: c.BaseUrl.Host}).String()
}

func (c *Client) dump(name string, res *resty.Response) {
	id := fmt.Sprintf("%s_%s.txt", name, c.time.Now().Format("20060102_150405"))
	c.diagnostics.Write(id, restyutil.FormatMessage(res))
}

func (c *Client) decodeListing(res *resty.Response, echo int64, pageSize int) (Page, error) {
	const op = report_client_fetch_page

	if res.IsError() {
		return Page{}, scrapeerr.FromStatus(op, res.StatusCode(), res.String())
	}
	body := bytes.TrimSpace(res.Body())
	if len(body) == 0 {
		return Page{}, scrapeerr.Auth(op, errors.New("empty listing payload"))
	}
	if body[0] == '<' {
		return Page{}, scrapeerr.Auth(op, errHtmlPayload)
	}

	var decoded listingResponse
	err := json.Unmarshal(body, &decoded)
	if err != nil {
		c.dump("listing", res)
		return Page{}, scrapeerr.Parse(op, err)
	}
	if decoded.Data == nil {
		c.dump("listing", res)
		return Page{}, scrapeerr.Parse(op, errors.New("payload has no aaData"))
	}
	if int64(decoded.Echo) != echo {
		c.tel.ReportWarning(op, fmt.Errorf("echo mismatch: sent %d, got %d", echo, decoded.Echo))
	}

	rawRows := *decoded.Data
	if len(rawRows) > pageSize {
		c.tel.ReportWarning(op, fmt.Errorf("server returned %d rows for a page of %d", len(rawRows), pageSize))
		rawRows = rawRows[:pageSize]
	}
	rows := make([][]string, len(rawRows))
	for i, raw := range rawRows {
		cells := make([]string, len(raw))
		for j, cell := range raw {
			cells[j] = cellString(cell)
		}
		rows[i] = cells
	}

	total := int(decoded.TotalRecords)
	if decoded.TotalDisplay != nil {
		total = int(*decoded.TotalDisplay)
	}
	if total < len(rows) {
		total = len(rows)
	}

	return Page{Echo: int64(decoded.Echo), Total: total, Rows: rows}, nil
}

// FetchListing fetches one window and parses its rows into records. Rows
// without an identifier are dropped and reported in Listing.Invalid.
func (c *Client) FetchListing(ctx context.Context, q tender.PageQuery) (tender.Listing, error) {
	page, err := c.FetchPage(ctx, q)
	if err != nil {
		return tender.Listing{}, err
	}

	listing := tender.Listing{Total: page.Total}
	now := c.time.Now()
	for i, row := range page.Rows {
		record, err := ParseRow(row, q.Offset+i)
		if err != nil {
			c.tel.ReportWarning(report_client_parse_row, err)
			listing.Invalid = append(listing.Invalid, err)
			continue
		}
		record.FetchedAt = now
		if len(record.Nav) > 0 {
			detailUrl, err := c.DetailURL(record.Nav)
			if err == nil {
				record.DetailURL = detailUrl
			}
		}
		listing.Records = append(listing.Records, record)
	}
	return listing, nil
}

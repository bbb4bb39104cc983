// Package browser drives a real browser through the portal's listing page
// for when the json endpoint cannot be used.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/scrapers/portal"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/htmlutil"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

const (
	report_client_load_listing = "client.load-listing"
	report_client_next_page    = "client.next-page"
	report_client_open_detail  = "client.open-detail"
	report_client_snapshot     = "client.snapshot"
)

const (
	TableSelector = "#pagetable13"
	RowSelector   = "#pagetable13 tbody tr:not(.dataTables_empty)"
	EmptySelector = "#pagetable13 td.dataTables_empty"
	InfoSelector  = "#pagetable13_info"
	NextSelector  = "#pagetable13_next:not(.disabled):not(.paginate_button_disabled):not(.paginate_disabled_next)"
)

var tracer = otel.Tracer("tenderscrape/internal/scrapers/browser")

// Window is a single browser tab.
type Window interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Count(ctx context.Context, selector string) (int, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	// ClickNewWindow clicks the element and returns the tab it opened.
	ClickNewWindow(ctx context.Context, selector string) (Window, error)
	NewWindow(ctx context.Context) (Window, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

type Options struct {
	ListingURL    string
	ScreenshotDir string
	// MinDelay and MaxDelay bound the pause after every page load.
	MinDelay     time.Duration
	MaxDelay     time.Duration
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Clock        chrono.API
	// DetailURL opens a detail view directly when its row is not on screen.
	DetailURL func(tender.NavTokens) (string, error)
}

type Client struct {
	window Window
	opts   Options
	sleep  func(ctx context.Context, d time.Duration) error

	loaded  bool
	rows    [][]string
	pageAt  int
	onPage  []string
	total   int
	hasMore bool

	tel telemetry.API
}

func NewClient(window Window, opts Options, tel telemetry.API) *Client {
	assert.NotNil(window)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.ListingURL)

	if opts.PollInterval == 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Clock == nil {
		opts.Clock = chrono.StandardImpl{}
	}

	return &Client{
		window: window,
		opts:   opts,
		sleep:  sleepCtx,
		tel:    telemetry.NewScopedAPI("browser", tel),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) humanDelay(ctx context.Context) error {
	d := c.opts.MinDelay
	if spread := c.opts.MaxDelay - c.opts.MinDelay; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread) + 1))
	}
	return c.sleep(ctx, d)
}

var errNotPopulated = errors.New("table did not populate in time")

// waitPopulated polls until the table shows rows or the explicit empty
// marker. When previous is set the table must also differ from it.
func (c *Client) waitPopulated(ctx context.Context, w Window, previous string) error {
	deadline := time.Now().Add(c.opts.WaitTimeout)
	for {
		empty, err := w.Count(ctx, EmptySelector)
		if err != nil {
			return err
		}
		rows := 0
		if empty == 0 {
			rows, err = w.Count(ctx, RowSelector)
			if err != nil {
				return err
			}
		}
		if rows > 0 || empty > 0 {
			if previous == "" {
				return nil
			}
			current, err := w.OuterHTML(ctx, TableSelector)
			if err != nil {
				return err
			}
			if current != previous {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return errNotPopulated
		}
		err = c.sleep(ctx, c.opts.PollInterval)
		if err != nil {
			return err
		}
	}
}

var infoTotalRegex = regexp.MustCompile(`(?i)of\s+([\d,]+)\s+entries`)

// readTable returns the raw cells of every data row currently on screen.
func (c *Client) readTable(ctx context.Context) ([][]string, error) {
	markup, err := c.window.OuterHTML(ctx, TableSelector)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, scrapeerr.Parse(report_client_load_listing, err)
	}

	var rows [][]string
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass("dataTables_empty") || tr.Find("td.dataTables_empty").Length() > 0 {
			return
		}
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			inner, err := td.Html()
			if err != nil {
				inner = td.Text()
			}
			cells = append(cells, inner)
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

func (c *Client) readTotal(ctx context.Context) int {
	n, err := c.window.Count(ctx, InfoSelector)
	if err != nil || n == 0 {
		return -1
	}
	info, err := c.window.OuterHTML(ctx, InfoSelector)
	if err != nil {
		return -1
	}
	match := infoTotalRegex.FindStringSubmatch(info)
	if match == nil {
		return -1
	}
	total, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
	if err != nil {
		return -1
	}
	return total
}

func (c *Client) takePage(ctx context.Context) error {
	rows, err := c.readTable(ctx)
	if err != nil {
		return err
	}
	c.pageAt = len(c.rows)
	c.rows = append(c.rows, rows...)
	c.onPage = c.onPage[:0]
	for _, row := range rows {
		id := ""
		if len(row) > 8 {
			id = htmlutil.CleanText(row[8])
		}
		c.onPage = append(c.onPage, id)
	}

	next, err := c.window.Count(ctx, NextSelector)
	if err != nil {
		return err
	}
	c.hasMore = next > 0 && len(rows) > 0

	c.total = c.readTotal(ctx)
	if c.total < len(c.rows) {
		c.total = len(c.rows)
		if c.hasMore {
			c.total++
		}
	}
	return nil
}

func (c *Client) loadListing(ctx context.Context) error {
	err := c.window.Navigate(ctx, c.opts.ListingURL)
	if err != nil {
		return err
	}
	err = c.humanDelay(ctx)
	if err != nil {
		return err
	}
	err = c.waitPopulated(ctx, c.window, "")
	if err != nil {
		return err
	}
	err = c.takePage(ctx)
	if err != nil {
		return err
	}
	c.loaded = true
	return nil
}

func (c *Client) nextPage(ctx context.Context) error {
	previous, err := c.window.OuterHTML(ctx, TableSelector)
	if err != nil {
		return err
	}
	err = c.window.Click(ctx, NextSelector)
	if err != nil {
		return err
	}
	err = c.humanDelay(ctx)
	if err != nil {
		return err
	}
	err = c.waitPopulated(ctx, c.window, previous)
	if err != nil {
		return err
	}
	return c.takePage(ctx)
}

// fail takes a diagnostic screenshot and turns err into a network error so
// callers treat a broken browser the same as a broken connection.
func (c *Client) fail(ctx context.Context, w Window, op string, err error) error {
	c.snapshot(ctx, w, strings.ReplaceAll(op, ".", "_"))
	if scrapeerr.IsFatal(err) || scrapeerr.Classify(err) != scrapeerr.KindFatal {
		c.tel.ReportBroken(op, err)
		return err
	}
	err = scrapeerr.Network(op, err)
	c.tel.ReportBroken(op, err)
	return err
}

func (c *Client) snapshot(ctx context.Context, w Window, name string) {
	if c.opts.ScreenshotDir == "" || w == nil {
		return
	}
	png, err := w.Screenshot(context.WithoutCancel(ctx))
	if err != nil {
		c.tel.ReportWarning(report_client_snapshot, err)
		return
	}
	err = os.MkdirAll(c.opts.ScreenshotDir, 0777)
	if err != nil {
		c.tel.ReportWarning(report_client_snapshot, err)
		return
	}
	path := filepath.Join(
		c.opts.ScreenshotDir,
		fmt.Sprintf("%s_%s.png", name, c.opts.Clock.Now().Format("20060102_150405")),
	)
	err = os.WriteFile(path, png, 0644)
	if err != nil {
		c.tel.ReportWarning(report_client_snapshot, err)
		return
	}
	c.tel.ReportDebug("saved screenshot", path)
}

// FetchListing returns the window of rows asked for, paging the table
// forward as needed. Rows are parsed exactly like the json listing.
func (c *Client) FetchListing(ctx context.Context, q tender.PageQuery) (tender.Listing, error) {
	ctx, span := tracer.Start(ctx, "FetchListing")
	defer span.End()

	if !c.loaded {
		err := c.loadListing(ctx)
		if err != nil {
			return tender.Listing{}, c.fail(ctx, c.window, report_client_load_listing, err)
		}
	}
	for len(c.rows) < q.Offset+q.PageSize && c.hasMore {
		err := c.nextPage(ctx)
		if err != nil {
			return tender.Listing{}, c.fail(ctx, c.window, report_client_next_page, err)
		}
	}

	start := min(q.Offset, len(c.rows))
	end := min(q.Offset+q.PageSize, len(c.rows))
	listing := tender.Listing{Total: max(c.total, end)}
	now := c.opts.Clock.Now()
	for i, row := range c.rows[start:end] {
		record, err := portal.ParseRow(row, start+i)
		if err != nil {
			listing.Invalid = append(listing.Invalid, err)
			continue
		}
		record.FetchedAt = now
		if c.opts.DetailURL != nil && len(record.Nav) > 0 {
			detailUrl, err := c.opts.DetailURL(record.Nav)
			if err == nil {
				record.DetailURL = detailUrl
			}
		}
		listing.Records = append(listing.Records, record)
	}
	return listing, nil
}

func (c *Client) rowOnScreen(id string) int {
	for i, onPage := range c.onPage {
		if onPage == id {
			return i
		}
	}
	return -1
}

func actionSelector(row int) string {
	cell := fmt.Sprintf("%s tbody tr:nth-child(%d) td:last-child", TableSelector, row+1)
	return cell + " a, " + cell + " [onclick]"
}

// FetchDetail opens the detail view of a record in its own tab, through the
// row's action when the row is on screen, and returns the rendered page.
func (c *Client) FetchDetail(ctx context.Context, record tender.Record) (tender.DetailPage, error) {
	ctx, span := tracer.Start(ctx, "FetchDetail")
	defer span.End()

	var (
		detail Window
		err    error
	)
	if row := c.rowOnScreen(record.TenderID); row >= 0 {
		detail, err = c.window.ClickNewWindow(ctx, actionSelector(row))
	} else {
		detail, err = c.openDirect(ctx, record)
	}
	if err != nil {
		return tender.DetailPage{}, c.fail(ctx, c.window, report_client_open_detail, err)
	}
	defer detail.Close()

	page, err := c.readDetail(ctx, detail)
	if err != nil {
		return tender.DetailPage{}, c.fail(ctx, detail, report_client_open_detail, err)
	}
	return page, nil
}

func (c *Client) openDirect(ctx context.Context, record tender.Record) (Window, error) {
	target := record.DetailURL
	if target == "" && c.opts.DetailURL != nil {
		var err error
		target, err = c.opts.DetailURL(record.Nav)
		if err != nil {
			return nil, err
		}
	}
	if target == "" {
		return nil, scrapeerr.Parse(report_client_open_detail, errors.New("record is not on screen and has no detail url"))
	}

	w, err := c.window.NewWindow(ctx)
	if err != nil {
		return nil, err
	}
	err = w.Navigate(ctx, target)
	if err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (c *Client) readDetail(ctx context.Context, w Window) (tender.DetailPage, error) {
	err := c.humanDelay(ctx)
	if err != nil {
		return tender.DetailPage{}, err
	}
	deadline := time.Now().Add(c.opts.WaitTimeout)
	for {
		n, err := w.Count(ctx, "body *")
		if err != nil {
			return tender.DetailPage{}, err
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			return tender.DetailPage{}, errNotPopulated
		}
		err = c.sleep(ctx, c.opts.PollInterval)
		if err != nil {
			return tender.DetailPage{}, err
		}
	}

	markup, err := w.OuterHTML(ctx, "html")
	if err != nil {
		return tender.DetailPage{}, err
	}
	location, err := w.Location(ctx)
	if err != nil {
		return tender.DetailPage{}, err
	}
	return tender.DetailPage{URL: location, HTML: markup}, nil
}

func (c *Client) Close() error {
	return c.window.Close()
}

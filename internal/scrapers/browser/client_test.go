package browser

import (
	"context"
	"os"
	"path/filepath"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const listingUrl = "https://portal.test/TenderDetailsHome.html"

func newTestClient(window *fakeWindow, screenshots string) *Client {
	return NewClient(window, Options{
		ListingURL:    listingUrl,
		ScreenshotDir: screenshots,
		PollInterval:  time.Millisecond,
		WaitTimeout:   50 * time.Millisecond,
		Clock:         chrono.Fixed{At: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)},
		DetailURL: func(nav tender.NavTokens) (string, error) {
			return "https://portal.test/detail?tenderNo=" + nav[0], nil
		},
	}, telemetry.NewRecorder())
}

func TestFetchListingPagesForward(t *testing.T) {
	window := &fakeWindow{
		pages: []string{
			listingTable(listingRow("B-1", "Check dam"), listingRow("B-2", "Culvert")),
			listingTable(listingRow("B-3", "Tank bund"), listingRow("B-4", "Sluice")),
		},
		info:    "Showing 1 to 2 of 4 entries",
		pending: 2,
	}
	client := newTestClient(window, "")

	first, err := client.FetchListing(context.Background(), tender.PageQuery{Offset: 0, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 4, first.Total)
	require.Len(t, first.Records, 2)
	require.Equal(t, "B-1", first.Records[0].TenderID)
	require.Equal(t, "Check dam", first.Records[0].Title)
	require.Equal(t, tender.NavTokens{"B-1", "O", "RB-1"}, first.Records[0].Nav)
	require.Equal(t, "https://portal.test/detail?tenderNo=B-1", first.Records[0].DetailURL)
	require.Equal(t, []string{listingUrl}, window.navigated)

	second, err := client.FetchListing(context.Background(), tender.PageQuery{Offset: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, second.Records, 2)
	require.Equal(t, "B-3", second.Records[0].TenderID)
	require.Equal(t, []string{NextSelector}, window.clicked)

	rest, err := client.FetchListing(context.Background(), tender.PageQuery{Offset: 4, PageSize: 2})
	require.NoError(t, err)
	require.Empty(t, rest.Records)
}

func TestFetchListingEmptyMarker(t *testing.T) {
	window := &fakeWindow{pages: []string{listingTable()}}
	client := newTestClient(window, "")

	listing, err := client.FetchListing(context.Background(), tender.PageQuery{PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, listing.Records)
	require.Equal(t, 0, listing.Total)
}

func TestFetchListingTimeoutTakesScreenshot(t *testing.T) {
	dir := t.TempDir()
	window := &fakeWindow{
		pages:   []string{listingTable(listingRow("X", "never shown"))},
		pending: 1 << 30,
	}
	client := newTestClient(window, dir)

	_, err := client.FetchListing(context.Background(), tender.PageQuery{PageSize: 10})
	require.Equal(t, scrapeerr.KindNetwork, scrapeerr.Classify(err))
	require.Equal(t, 1, window.screenshots)

	_, err = os.Stat(filepath.Join(dir, "client_load-listing_20240301_100000.png"))
	require.NoError(t, err)
}

func TestFetchDetailThroughRowAction(t *testing.T) {
	window := &fakeWindow{
		pages: []string{listingTable(listingRow("D-1", "Pump house"), listingRow("D-2", "Pipeline"))},
		byClick: map[string]string{
			actionSelector(1): "<html><body><h3>Eligibility</h3><p>Class B</p></body></html>",
		},
	}
	client := newTestClient(window, "")

	listing, err := client.FetchListing(context.Background(), tender.PageQuery{PageSize: 10})
	require.NoError(t, err)

	page, err := client.FetchDetail(context.Background(), listing.Records[1])
	require.NoError(t, err)
	require.Contains(t, page.HTML, "Class B")
	require.Len(t, window.children, 1)
	require.True(t, window.children[0].closed)
}

func TestFetchDetailOffScreen(t *testing.T) {
	window := &fakeWindow{
		pages: []string{listingTable(listingRow("E-1", "Godown"))},
		byUrl: map[string]string{
			"https://portal.test/detail?tenderNo=E-9": "<html><body><p>Submission Procedure</p></body></html>",
		},
	}
	client := newTestClient(window, "")

	_, err := client.FetchListing(context.Background(), tender.PageQuery{PageSize: 10})
	require.NoError(t, err)

	page, err := client.FetchDetail(context.Background(), tender.Record{TenderID: "E-9", Nav: tender.NavTokens{"E-9", "O"}})
	require.NoError(t, err)
	require.Equal(t, "https://portal.test/detail?tenderNo=E-9", page.URL)
	require.Contains(t, page.HTML, "Submission Procedure")
	require.True(t, window.children[0].closed)
}

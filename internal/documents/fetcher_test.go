package documents

import (
	"context"
	"os"
	"path/filepath"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/retry"
	"tenderscrape/internal/scrapers/portal/portaltest"
	"tenderscrape/internal/tender"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, workers int) (*Fetcher, string) {
	dir := t.TempDir()
	fetcher, err := NewFetcher(resty.New(), Options{
		Dir:     dir,
		Workers: workers,
		Retry:   retry.Policy{MaxAttempts: 3, BackoffBase: 2, Unit: time.Millisecond},
	}, telemetry.NewRecorder())
	require.NoError(t, err)
	return fetcher, dir
}

func TestDownload(t *testing.T) {
	server := portaltest.New()
	defer server.Close()
	link := server.SetFile("notice.pdf", []byte("%PDF-1.4 notice"))

	fetcher, dir := newTestFetcher(t, 1)
	record := tender.Record{TenderID: "T/100"}
	doc := tender.DocumentRef{URL: link, Kind: tender.KindPDF, Filename: "T_100_notice.pdf"}

	err := fetcher.Download(context.Background(), record, &doc)
	require.NoError(t, err)
	require.Equal(t, tender.StatusDownloaded, doc.Status)
	require.Equal(t, filepath.Join(dir, "T_100", "T_100_notice.pdf"), doc.LocalPath)
	require.EqualValues(t, 15, doc.Size)

	contents, err := os.ReadFile(doc.LocalPath)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 notice", string(contents))

	entries, err := os.ReadDir(filepath.Dir(doc.LocalPath))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")

	again := tender.DocumentRef{URL: link, Kind: tender.KindPDF, Filename: "T_100_notice.pdf"}
	err = fetcher.Download(context.Background(), record, &again)
	require.NoError(t, err)
	require.Equal(t, tender.StatusDownloaded, again.Status)
	require.Equal(t, 1, server.Downloads("notice.pdf"))
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	server := portaltest.New()
	defer server.Close()
	link := server.SetFile("boq.xlsx", []byte("sheet"))
	server.FailFile("boq.xlsx", 2)

	fetcher, _ := newTestFetcher(t, 1)
	doc := tender.DocumentRef{URL: link, Filename: "T-1_boq.xlsx"}
	err := fetcher.Download(context.Background(), tender.Record{TenderID: "T-1"}, &doc)
	require.NoError(t, err)
	require.Equal(t, tender.StatusDownloaded, doc.Status)
	require.Equal(t, 3, server.Downloads("boq.xlsx"))
}

func TestDownloadFailures(t *testing.T) {
	server := portaltest.New()
	defer server.Close()
	empty := server.SetFile("empty.pdf", []byte{})
	missing := server.URL + "/files/missing.pdf"

	fetcher, _ := newTestFetcher(t, 1)
	record := tender.Record{TenderID: "T-2"}

	doc := tender.DocumentRef{URL: empty, Filename: "T-2_empty.pdf"}
	err := fetcher.Download(context.Background(), record, &doc)
	require.ErrorIs(t, err, ErrEmptyDownload)
	require.Equal(t, tender.StatusFailed, doc.Status)
	require.NoFileExists(t, doc.LocalPath)
	require.Equal(t, 1, server.Downloads("empty.pdf"))

	doc = tender.DocumentRef{URL: missing, Filename: "T-2_missing.pdf"}
	err = fetcher.Download(context.Background(), record, &doc)
	require.Error(t, err)
	require.Equal(t, tender.StatusFailed, doc.Status)
	require.Equal(t, 1, server.Downloads("missing.pdf"), "client errors are not retried")
}

func TestDownloadAll(t *testing.T) {
	server := portaltest.New()
	defer server.Close()

	docs := []tender.DocumentRef{
		{URL: server.SetFile("a.pdf", []byte("a")), Filename: "T-3_a.pdf"},
		{URL: server.SetFile("b.pdf", []byte("bb")), Filename: "T-3_b.pdf"},
		{URL: server.URL + "/files/c.pdf", Filename: "T-3_c.pdf"},
		{URL: server.SetFile("d.csv", []byte("x,y")), Filename: "T-3_d.csv"},
	}

	fetcher, _ := newTestFetcher(t, 2)
	err := fetcher.DownloadAll(context.Background(), tender.Record{TenderID: "T-3"}, docs)
	require.NoError(t, err)

	statuses := []tender.DocumentStatus{}
	for _, doc := range docs {
		statuses = append(statuses, doc.Status)
	}
	require.Equal(t, []tender.DocumentStatus{
		tender.StatusDownloaded,
		tender.StatusDownloaded,
		tender.StatusFailed,
		tender.StatusDownloaded,
	}, statuses)
	require.EqualValues(t, 2, docs[1].Size)
}

func TestDownloadAllCancelled(t *testing.T) {
	server := portaltest.New()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher, _ := newTestFetcher(t, 1)
	docs := []tender.DocumentRef{
		{URL: server.SetFile("a.pdf", []byte("a")), Filename: "T-4_a.pdf"},
	}
	err := fetcher.DownloadAll(ctx, tender.Record{TenderID: "T-4"}, docs)
	require.ErrorIs(t, err, context.Canceled)
}

// Package documents downloads the attachments of a record into
// <dir>/<record>/<filename>, skipping files that are already complete.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/retry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/textutil"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	report_fetcher_download = "fetcher.download"
)

var tracer = otel.Tracer("tenderscrape/internal/documents")

var ErrEmptyDownload = errors.New("downloaded file is empty")

type Options struct {
	Dir string
	// Delay is the minimum spacing between two downloads.
	Delay   time.Duration
	Workers int
	Retry   retry.Policy
	// Referer is sent with every download, the portal rejects bare requests
	// for some attachments.
	Referer string
}

type Fetcher struct {
	http    *resty.Client
	dir     string
	workers int
	retry   retry.Policy
	referer string
	limiter *rate.Limiter
	tel     telemetry.API
}

// NewFetcher downloads through client, which should share the portal
// session so protected attachments resolve.
func NewFetcher(client *resty.Client, opts Options, tel telemetry.API) (*Fetcher, error) {
	assert.NotNil(client)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Dir)

	err := opts.Retry.Validate()
	if err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Fetcher{
		http:    client,
		dir:     opts.Dir,
		workers: opts.Workers,
		retry:   opts.Retry,
		referer: opts.Referer,
		limiter: rate.NewLimiter(limit, 1),
		tel:     telemetry.NewScopedAPI("documents", tel),
	}, nil
}

// PathFor is where a document of the given record is stored.
func (f *Fetcher) PathFor(record tender.Record, doc tender.DocumentRef) string {
	return filepath.Join(f.dir, textutil.SanitizeFilename(record.TenderID), doc.Filename)
}

func complete(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return 0, false
	}
	return info.Size(), true
}

// Download fetches one document and updates doc in place. A file that is
// already present with a non-zero size is not requested again.
func (f *Fetcher) Download(ctx context.Context, record tender.Record, doc *tender.DocumentRef) error {
	ctx, span := tracer.Start(ctx, "Download")
	defer span.End()
	span.SetAttributes(attribute.String("url", doc.URL))

	doc.LocalPath = f.PathFor(record, *doc)
	if size, ok := complete(doc.LocalPath); ok {
		doc.Status = tender.StatusDownloaded
		doc.Size = size
		f.tel.ReportDebug("already downloaded", doc.LocalPath)
		return nil
	}

	doc.Status = tender.StatusDownloading
	err := os.MkdirAll(filepath.Dir(doc.LocalPath), 0777)
	if err != nil {
		doc.Status = tender.StatusFailed
		return scrapeerr.Fatal(report_fetcher_download, err)
	}

	err = f.limiter.Wait(ctx)
	if err != nil {
		doc.Status = tender.StatusFailed
		return err
	}

	temp, err := f.fetch(ctx, doc.URL, doc.LocalPath)
	if err != nil {
		doc.Status = tender.StatusFailed
		f.tel.ReportWarning(report_fetcher_download, err, doc.URL)
		return err
	}

	info, err := os.Stat(temp)
	if err != nil || info.Size() == 0 {
		os.Remove(temp)
		doc.Status = tender.StatusFailed
		err = scrapeerr.Validation("size", 0, fmt.Errorf("%s: %w", doc.URL, ErrEmptyDownload))
		f.tel.ReportWarning(report_fetcher_download, err)
		return err
	}
	err = os.Rename(temp, doc.LocalPath)
	if err != nil {
		os.Remove(temp)
		doc.Status = tender.StatusFailed
		return fmt.Errorf("rename %s: %w", temp, err)
	}

	doc.Status = tender.StatusDownloaded
	doc.Size = info.Size()
	return nil
}

// fetch streams url into a temporary file next to dest and returns its path.
func (f *Fetcher) fetch(ctx context.Context, url, dest string) (string, error) {
	suffix, err := random.String(8)
	if err != nil {
		return "", err
	}
	temp := fmt.Sprintf("%s.part-%s", dest, suffix)

	err = f.retry.Do(ctx, report_fetcher_download, func(ctx context.Context) error {
		req := f.http.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			SetHeader("accept", "*/*").
			SetHeader("x-requested-with", "XMLHttpRequest")
		if f.referer != "" {
			req.SetHeader("referer", f.referer)
		}
		res, err := req.Get(url)
		if err != nil {
			return scrapeerr.Network(report_fetcher_download, err)
		}
		body := res.RawBody()
		defer body.Close()

		if res.IsError() {
			excerpt, _ := io.ReadAll(io.LimitReader(body, 200))
			return scrapeerr.FromStatus(report_fetcher_download, res.StatusCode(), string(excerpt))
		}

		file, err := os.Create(temp)
		if err != nil {
			return err
		}
		_, err = io.Copy(file, body)
		closeErr := file.Close()
		if err != nil {
			return scrapeerr.Network(report_fetcher_download, err)
		}
		return closeErr
	})
	if err != nil {
		os.Remove(temp)
		return "", err
	}
	return temp, nil
}

// DownloadAll downloads every document of a record with a bounded number of
// workers. Failures are recorded on the documents themselves, only fatal
// errors are returned.
func (f *Fetcher) DownloadAll(ctx context.Context, record tender.Record, docs []tender.DocumentRef) error {
	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
		fatal error
	)
	slots := make(chan struct{}, f.workers)
	for i := range docs {
		if ctx.Err() != nil {
			break
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(doc *tender.DocumentRef) {
			defer wg.Done()
			defer func() { <-slots }()

			err := f.Download(ctx, record, doc)
			if err != nil && scrapeerr.IsFatal(err) {
				mutex.Lock()
				if fatal == nil {
					fatal = err
				}
				mutex.Unlock()
			}
		}(&docs[i])
	}
	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fatal
}

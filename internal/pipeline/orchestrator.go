// Package pipeline walks every listed tender through detail extraction,
// attachment download, parsing and persistence, and keeps the run log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/detail"
	"tenderscrape/internal/docparse"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/store"
	"tenderscrape/internal/tender"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_orchestrator_listing  = "orchestrator.listing"
	report_orchestrator_record   = "orchestrator.record"
	report_orchestrator_parse    = "orchestrator.parse"
	report_orchestrator_persist  = "orchestrator.persist"
	report_orchestrator_run_log  = "orchestrator.run-log"
	report_orchestrator_finished = "orchestrator.finished"
)

var tracer = otel.Tracer("tenderscrape/internal/pipeline")

var errDuplicate = errors.New("tender id already seen in this run")

// Lister serves listing pages and knows which client served them.
type Lister interface {
	FetchListing(ctx context.Context, q tender.PageQuery) (tender.Listing, tender.FetchMode, error)
	Mode() tender.FetchMode
}

type DetailExtractor interface {
	Extract(ctx context.Context, record tender.Record) (detail.Result, error)
}

type Downloader interface {
	DownloadAll(ctx context.Context, record tender.Record, docs []tender.DocumentRef) error
}

type Parser interface {
	Parse(ctx context.Context, doc tender.DocumentRef) (docparse.Result, error)
}

type Options struct {
	// Limit caps the number of listed rows handled, 0 means all of them.
	Limit    int
	PageSize int
	Search   string
	// SortColumn, SortDir and Filters are passed on to every listing request.
	SortColumn int
	SortDir    tender.SortDir
	Filters    map[int]string
	Clock      chrono.API
}

type Orchestrator struct {
	lister     Lister
	extractor  DetailExtractor
	downloader Downloader
	parser     Parser
	store      *store.Store
	opts       Options
	tel        telemetry.API
}

func NewOrchestrator(
	lister Lister,
	extractor DetailExtractor,
	downloader Downloader,
	parser Parser,
	storage *store.Store,
	opts Options,
	tel telemetry.API,
) *Orchestrator {
	assert.NotNil(lister)
	assert.NotNil(extractor)
	assert.NotNil(downloader)
	assert.NotNil(parser)
	assert.NotNil(storage)
	assert.NotNil(opts.Clock)
	assert.NotNil(tel)
	assert.Positive("page size", opts.PageSize)

	return &Orchestrator{
		lister:     lister,
		extractor:  extractor,
		downloader: downloader,
		parser:     parser,
		store:      storage,
		opts:       opts,
		tel:        telemetry.NewScopedAPI("pipeline", tel),
	}
}

// outcome is everything one record produced before it is written.
type outcome struct {
	record    tender.Record
	mode      tender.FetchMode
	hasDetail bool
	detail    tender.Detail
	documents []tender.DocumentRef
	// fields are indexed like documents.
	fields [][]tender.ExtractedField
}

type run struct {
	log   tender.RunLog
	seen  map[string]bool
	notes []string
}

func (r *run) note(format string, args ...any) {
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

// Run executes one complete scrape. The returned run log is also persisted,
// even when the run aborts. The error is non nil only when the run was
// aborted, either by a fatal error or by ctx.
func (o *Orchestrator) Run(ctx context.Context) (tender.RunLog, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	r := &run{
		log: tender.RunLog{
			ID:        uuid.NewString(),
			StartedAt: o.opts.Clock.Now(),
		},
		seen: map[string]bool{},
	}
	span.SetAttributes(attribute.String("run_id", r.log.ID))

	err := o.walk(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return o.finish(ctx, r, err)
}

func (o *Orchestrator) limitReached(r *run) bool {
	return o.opts.Limit > 0 && r.log.Discovered >= o.opts.Limit
}

func (o *Orchestrator) walk(ctx context.Context, r *run) error {
	offset := 0
	row := 0
	for !o.limitReached(r) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pageSize := o.opts.PageSize
		if o.opts.Limit > 0 && o.opts.Limit-r.log.Discovered < pageSize {
			pageSize = o.opts.Limit - r.log.Discovered
		}
		listing, mode, err := o.lister.FetchListing(ctx, tender.PageQuery{
			Offset:     offset,
			PageSize:   pageSize,
			Search:     o.opts.Search,
			SortColumn: o.opts.SortColumn,
			SortDir:    o.opts.SortDir,
			Filters:    o.opts.Filters,
		})
		if err != nil {
			o.tel.ReportBroken(report_orchestrator_listing, err, offset)
			if scrapeerr.IsFatal(err) {
				return err
			}
			return scrapeerr.Fatal(report_orchestrator_listing, err)
		}
		if listing.Rows() == 0 {
			if offset == 0 {
				r.note("listing returned no rows")
			}
			return nil
		}

		for _, invalid := range listing.Invalid {
			if o.limitReached(r) {
				return nil
			}
			r.log.Discovered++
			r.log.Failed++
			o.tel.ReportWarning(report_orchestrator_record, invalid)
		}

		for _, record := range listing.Records {
			if o.limitReached(r) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Discovered++
			row++

			err := o.record(ctx, r, row, record, mode)
			if err != nil && scrapeerr.IsFatal(err) {
				return err
			}
			if err != nil {
				r.log.Failed++
				o.tel.ReportWarning(report_orchestrator_record, err, record.TenderID)
				continue
			}
			r.log.Succeeded++
		}

		offset += listing.Rows()
		if offset >= listing.Total {
			return nil
		}
	}
	return nil
}

// record runs the per record stages. Any error it returns that is not
// fatal only fails this record.
func (o *Orchestrator) record(ctx context.Context, r *run, row int, record tender.Record, mode tender.FetchMode) error {
	ctx, span := tracer.Start(ctx, "record")
	defer span.End()
	span.SetAttributes(attribute.String("tender_id", record.TenderID))

	err := record.Validate(row)
	if err != nil {
		return err
	}
	if r.seen[record.TenderID] {
		return scrapeerr.Validation("tender_id", row, fmt.Errorf("%s: %w", record.TenderID, errDuplicate))
	}
	r.seen[record.TenderID] = true
	for _, warning := range record.Warnings(row) {
		o.tel.ReportWarning(report_orchestrator_record, fmt.Errorf("%s: %w", record.TenderID, warning))
	}

	out := outcome{record: record, mode: mode}

	result, err := o.extractor.Extract(ctx, record)
	switch {
	case err == nil:
		out.hasDetail = true
		out.detail = result.Detail
		out.documents = result.Documents
	case scrapeerr.Classify(err) == scrapeerr.KindParse && !scrapeerr.IsFatal(err):
		o.tel.ReportWarning(report_orchestrator_record, fmt.Errorf("detail of %s: %w", record.TenderID, err))
	default:
		return err
	}

	if len(out.documents) > 0 {
		err = o.downloader.DownloadAll(ctx, record, out.documents)
		if err != nil && scrapeerr.IsFatal(err) {
			return err
		}
	}

	out.fields = make([][]tender.ExtractedField, len(out.documents))
	for i, doc := range out.documents {
		switch doc.Status {
		case tender.StatusDownloaded:
			r.log.DocumentsDownloaded++
		default:
			r.log.DocumentsFailed++
			continue
		}

		parsed, err := o.parser.Parse(ctx, doc)
		if err != nil {
			o.tel.ReportWarning(report_orchestrator_parse, err, doc.LocalPath)
			continue
		}
		r.log.DocumentsParsed++
		out.fields[i] = parsed.Fields
	}

	err = o.persist(ctx, out)
	if err != nil {
		o.tel.ReportBroken(report_orchestrator_persist, err, record.TenderID)
		return scrapeerr.Fatal(report_orchestrator_persist, err)
	}
	return nil
}

// persist writes a record and everything found for it in one transaction.
func (o *Orchestrator) persist(ctx context.Context, out outcome) error {
	return o.store.Transact(ctx, func(tx store.Tx) error {
		recordId, err := tx.CreateOrGet(ctx, out.record, out.mode)
		if err != nil {
			return err
		}
		if out.hasDetail {
			err = tx.UpsertDetail(ctx, recordId, out.detail)
			if err != nil {
				return err
			}
		}
		for i, doc := range out.documents {
			registered := doc
			registered.Status = tender.StatusPending
			registered.Size = 0
			documentId, err := tx.AddDocument(ctx, recordId, registered)
			if err != nil {
				return err
			}
			err = tx.UpdateDocumentStatus(ctx, documentId, doc.Status, doc.Size)
			if err != nil {
				return err
			}
			for _, field := range out.fields[i] {
				err = tx.AddExtractedField(ctx, recordId, documentId, field)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func status(log tender.RunLog, aborted bool) tender.RunStatus {
	switch {
	case aborted:
		return tender.RunFailed
	case log.Failed == 0:
		return tender.RunSuccess
	default:
		return tender.RunPartial
	}
}

func (o *Orchestrator) finish(ctx context.Context, r *run, runErr error) (tender.RunLog, error) {
	r.log.FinishedAt = o.opts.Clock.Now()
	r.log.Mode = o.lister.Mode()
	r.log.Status = status(r.log, runErr != nil)

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		r.note("interrupted after %d of the discovered records", r.log.Succeeded+r.log.Failed)
	default:
		r.note("aborted: %v", runErr)
	}
	r.log.Notes = strings.Join(r.notes, "; ")

	// the run log is written even when ctx is what stopped the run.
	err := o.store.AppendRunLog(context.WithoutCancel(ctx), r.log)
	if err != nil {
		o.tel.ReportBroken(report_orchestrator_run_log, err)
		return r.log, errors.Join(runErr, scrapeerr.Fatal(report_orchestrator_run_log, err))
	}

	o.tel.ReportDebug(
		report_orchestrator_finished,
		"discovered", r.log.Discovered,
		"succeeded", r.log.Succeeded,
		"failed", r.log.Failed,
		"status", r.log.Status,
	)
	return r.log, runErr
}

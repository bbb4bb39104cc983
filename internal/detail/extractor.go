// Package detail turns a rendered detail view into named text sections and
// a list of downloadable attachments.
package detail

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/htmlutil"
	"tenderscrape/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

const (
	report_extractor_extract   = "extractor.extract"
	report_extractor_documents = "extractor.documents"
)

var tracer = otel.Tracer("tenderscrape/internal/detail")

// Source serves detail views, the fetch selector in practice.
type Source interface {
	FetchDetail(ctx context.Context, record tender.Record) (tender.DetailPage, tender.FetchMode, error)
}

type Result struct {
	Detail    tender.Detail
	Documents []tender.DocumentRef
	Mode      tender.FetchMode
}

type Extractor struct {
	source   Source
	sections []SectionLabels
	tel      telemetry.API
}

func NewExtractor(source Source, sections []SectionLabels, tel telemetry.API) Extractor {
	assert.NotNil(source)
	assert.NotNil(tel)
	if len(sections) == 0 {
		sections = DefaultSectionLabels()
	}
	return Extractor{
		source:   source,
		sections: sections,
		tel:      telemetry.NewScopedAPI("detail", tel),
	}
}

// Extract fetches the detail view of record and parses it. Fetch errors are
// returned as they are, a page that cannot be parsed is a ParseError.
func (e Extractor) Extract(ctx context.Context, record tender.Record) (Result, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()

	page, mode, err := e.source.FetchDetail(ctx, record)
	if err != nil {
		return Result{Mode: mode}, err
	}

	result, err := e.Parse(ctx, record, page)
	result.Mode = mode
	if err != nil {
		e.tel.ReportBroken(report_extractor_extract, err, record.TenderID)
		return result, err
	}
	return result, nil
}

// Parse extracts sections and attachments from an already fetched page.
func (e Extractor) Parse(ctx context.Context, record tender.Record, page tender.DetailPage) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return Result{}, scrapeerr.Parse(report_extractor_extract, err)
	}
	if len(doc.Nodes) == 0 {
		return Result{}, scrapeerr.Parse(report_extractor_extract, fmt.Errorf("empty document"))
	}

	lines := htmlutil.BlockLines(doc.Nodes[0])
	result := Result{
		Detail:    ParseSections(lines, e.sections),
		Documents: e.documents(ctx, record, page.URL, doc),
	}
	if result.Detail.Empty() {
		e.tel.ReportDebug("no sections found", record.TenderID)
	}
	return result, nil
}

// documentRegion narrows the search for attachments to containers that look
// like an attachment list, falling back to the whole page.
func documentRegion(doc *goquery.Document) *goquery.Selection {
	region := doc.Find("[id], [class]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		id, _ := sel.Attr("id")
		class, _ := sel.Attr("class")
		marker := strings.ToLower(id + " " + class)
		return strings.Contains(marker, "document") || strings.Contains(marker, "attach")
	})
	if region.Find("a[href]").Length() > 0 {
		return region
	}
	return doc.Selection
}

func (e Extractor) documents(ctx context.Context, record tender.Record, base string, doc *goquery.Document) []tender.DocumentRef {
	baseUrl, err := url.Parse(base)
	if err != nil {
		baseUrl = &url.URL{}
	}

	seenUrl := map[string]bool{}
	seenName := map[string]int{}
	var docs []tender.DocumentRef
	for _, anchor := range htmlutil.GetAnchors(ctx, documentRegion(doc).Find("a[href]")) {
		href := strings.TrimSpace(anchor.Href)
		lower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			continue
		}
		link, err := url.Parse(href)
		if err != nil {
			e.tel.ReportWarning(report_extractor_documents, err, href)
			continue
		}
		resolved := baseUrl.ResolveReference(link)

		kind := tender.InferKind(resolved, anchor.Type, anchor.Name)
		if kind == tender.KindUnknown && !strings.Contains(lower, "download") {
			continue
		}
		if seenUrl[resolved.String()] {
			continue
		}
		seenUrl[resolved.String()] = true

		filename := documentFilename(record.TenderID, anchor.Name, resolved, kind)
		seenName[filename]++
		if n := seenName[filename]; n > 1 {
			ext := path.Ext(filename)
			filename = strings.TrimSuffix(filename, ext) + "_" + strconv.Itoa(n) + ext
		}

		docs = append(docs, tender.DocumentRef{
			URL:      resolved.String(),
			Kind:     kind,
			Filename: filename,
			Status:   tender.StatusPending,
		})
	}
	return docs
}

// documentFilename names a download after its record and its link text, or
// the last path segment of its url when the text is not useful.
func documentFilename(recordId, text string, link *url.URL, kind tender.DocumentKind) string {
	stem := strings.TrimSpace(text)
	base := path.Base(link.Path)
	if stem == "" || strings.EqualFold(stem, "download") || strings.EqualFold(stem, "view") {
		stem = strings.TrimSuffix(base, path.Ext(base))
	}
	stem = strings.TrimSuffix(stem, path.Ext(stem))

	ext := strings.ToLower(path.Ext(base))
	if tender.KindFromExtension(ext) != kind || ext == "" {
		ext = tender.ExtensionFor(kind)
	}
	return textutil.SanitizeFilename(recordId + "_" + stem + ext)
}

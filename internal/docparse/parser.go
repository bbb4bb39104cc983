// Package docparse turns downloaded attachments into plain text and pulls
// structured fields out of that text.
package docparse

import (
	"context"
	"fmt"
	"strings"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_parser_parse = "parser.parse"
)

var tracer = otel.Tracer("tenderscrape/internal/docparse")

// Handler extracts the text of the file at path.
type Handler func(ctx context.Context, path string) (string, error)

// DefaultHandlers is the dispatch table for every readable document kind.
func DefaultHandlers() map[tender.DocumentKind]Handler {
	return map[tender.DocumentKind]Handler{
		tender.KindPDF:         PDFText,
		tender.KindSpreadsheet: SpreadsheetText,
		tender.KindWord:        WordText,
		tender.KindCSV:         CSVText,
	}
}

type Result struct {
	Text   string
	Fields []tender.ExtractedField
}

type Parser struct {
	handlers map[tender.DocumentKind]Handler
	patterns []Pattern
	tel      telemetry.API
}

func NewParser(patterns []Pattern, tel telemetry.API) *Parser {
	assert.NotNil(tel)
	return &Parser{
		handlers: DefaultHandlers(),
		patterns: patterns,
		tel:      telemetry.NewScopedAPI("docparse", tel),
	}
}

// Handle replaces the handler of a kind.
func (p *Parser) Handle(kind tender.DocumentKind, handler Handler) {
	p.handlers[kind] = handler
}

func (p *Parser) text(ctx context.Context, kind tender.DocumentKind, path string) (text string, err error) {
	handler, ok := p.handlers[kind]
	if !ok {
		return "", fmt.Errorf("no handler for %s documents", kind)
	}
	defer func() {
		r := recover()
		if r != nil {
			text = ""
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, path)
}

// Parse extracts the text of a downloaded document and the fields found in
// it. An unreadable or corrupt file yields a Result with empty text and a nil
// error, the cause is only reported as a warning. Asking for a document that
// was never downloaded returns a *scrapeerr.ParseError.
func (p *Parser) Parse(ctx context.Context, doc tender.DocumentRef) (Result, error) {
	ctx, span := tracer.Start(ctx, "Parse")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", doc.LocalPath),
		attribute.String("kind", string(doc.Kind)),
	)

	if doc.Status != tender.StatusDownloaded || doc.LocalPath == "" {
		return Result{}, scrapeerr.Parse(report_parser_parse, fmt.Errorf("%s has not been downloaded", doc.URL))
	}

	text, err := p.text(ctx, doc.Kind, doc.LocalPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.tel.ReportWarning(report_parser_parse, scrapeerr.Parse(report_parser_parse, fmt.Errorf("%s: %w", doc.LocalPath, err)))
		return Result{}, nil
	}

	text = strings.TrimSpace(text)
	fields := ExtractFields(text, p.patterns)
	p.tel.ReportCount(report_parser_parse, int64(len(fields)))
	return Result{Text: text, Fields: fields}, nil
}

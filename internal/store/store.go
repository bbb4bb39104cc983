// Package store persists scraped tenders, their documents and extracted
// fields, and the run history into sqlite or a remote libsql database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/config"
	"tenderscrape/internal/db"
	"tenderscrape/internal/tender"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("tenderscrape/internal/store")

const MemoryFile = ":memory:"

// Tx writes one record and everything that hangs off it. Every write is an
// upsert so running the same record twice leaves the same rows behind.
type Tx struct {
	qry  *db.Queries
	time chrono.API
}

type Store struct {
	Tx
	db *sql.DB
}

func openSqlite(file string) (*sql.DB, error) {
	if file != MemoryFile {
		err := os.MkdirAll(filepath.Dir(file), 0777)
		if err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases alive and serializes
	// writes to files.
	database.SetMaxOpenConns(1)
	if file != MemoryFile {
		_, err = database.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			database.Close()
			return nil, err
		}
	}
	return database, nil
}

func openLibsql(dsn, authToken string) (*sql.DB, error) {
	if authToken != "" {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return nil, err
		}
		query := parsed.Query()
		query.Set("authToken", authToken)
		parsed.RawQuery = query.Encode()
		dsn = parsed.String()
	}
	return sql.Open("libsql", dsn)
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg config.Database, clock chrono.API) (*Store, error) {
	var (
		database *sql.DB
		err      error
	)
	if cfg.Url != "" {
		database, err = openLibsql(cfg.Url, cfg.AuthToken)
	} else {
		database, err = openSqlite(cfg.File)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = database.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return New(database, clock), nil
}

// New wraps an already prepared database.
func New(database *sql.DB, clock chrono.API) *Store {
	return &Store{
		Tx: Tx{qry: db.New(database), time: clock},
		db: database,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Transact runs fn inside a transaction, an error from fn rolls every write
// of fn back.
func (s *Store) Transact(ctx context.Context, fn func(tx Tx) error) error {
	ctx, span := tracer.Start(ctx, "Transact")
	defer span.End()

	err := db.InTx(ctx, s.db, func(qry *db.Queries) error {
		return fn(Tx{qry: qry, time: s.time})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (t Tx) now() int64 {
	return t.time.Now().Unix()
}

// CreateOrGet stores the listing values of a record and returns its row id.
func (t Tx) CreateOrGet(ctx context.Context, record tender.Record, mode tender.FetchMode) (int64, error) {
	nav := record.Nav
	if nav == nil {
		nav = tender.NavTokens{}
	}
	navJson, err := json.Marshal(nav)
	if err != nil {
		return 0, err
	}
	return t.qry.UpsertTender(ctx, db.UpsertTenderParams{
		TenderID:      record.TenderID,
		Department:    record.Department,
		NoticeNumber:  record.NoticeNumber,
		Category:      record.Category,
		Title:         record.Title,
		TenderValue:   record.Value,
		PublishedDate: record.PublishedDate,
		BidOpenDate:   record.BidOpenDate,
		BidCloseDate:  record.BidCloseDate,
		NavTokens:     string(navJson),
		DetailUrl:     record.DetailURL,
		FetchMode:     string(mode),
		FetchedAt:     unix(record.FetchedAt),
		UpdatedAt:     t.now(),
	})
}

func (t Tx) UpsertDetail(ctx context.Context, recordID int64, detail tender.Detail) error {
	return t.qry.UpsertTenderDetail(ctx, db.UpsertTenderDetailParams{
		TenderID:            recordID,
		Eligibility:         detail.Eligibility,
		GeneralTerms:        detail.GeneralTerms,
		LegalTerms:          detail.LegalTerms,
		TechnicalTerms:      detail.TechnicalTerms,
		SubmissionProcedure: detail.SubmissionProcedure,
		UpdatedAt:           t.now(),
	})
}

// AddDocument stores a document of a record, keyed by its url.
func (t Tx) AddDocument(ctx context.Context, recordID int64, doc tender.DocumentRef) (int64, error) {
	status := doc.Status
	if status == "" {
		status = tender.StatusPending
	}
	return t.qry.UpsertDocument(ctx, db.UpsertDocumentParams{
		TenderID:  recordID,
		Url:       doc.URL,
		Kind:      string(doc.Kind),
		Filename:  doc.Filename,
		LocalPath: doc.LocalPath,
		Status:    string(status),
		Size:      doc.Size,
		UpdatedAt: t.now(),
	})
}

var ErrNotFound = errors.New("not found")

func (t Tx) UpdateDocumentStatus(ctx context.Context, documentID int64, status tender.DocumentStatus, size int64) error {
	n, err := t.qry.UpdateDocumentStatus(ctx, db.UpdateDocumentStatusParams{
		Status:    string(status),
		Size:      size,
		UpdatedAt: t.now(),
		ID:        documentID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %d: %w", documentID, ErrNotFound)
	}
	return nil
}

// AddExtractedField overwrites an earlier value of the same field taken from
// the same document.
func (t Tx) AddExtractedField(ctx context.Context, recordID, documentID int64, field tender.ExtractedField) error {
	return t.qry.UpsertExtractedField(ctx, db.UpsertExtractedFieldParams{
		TenderID:    recordID,
		DocumentID:  documentID,
		Name:        field.Name,
		Value:       field.Value,
		Type:        string(field.Type),
		Method:      field.Method,
		ExtractedAt: t.now(),
	})
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// AppendRunLog writes a run entry, writing the same id again replaces it.
func (t Tx) AppendRunLog(ctx context.Context, entry tender.RunLog) error {
	ctx, span := tracer.Start(ctx, "AppendRunLog")
	defer span.End()
	span.SetAttributes(attribute.String("id", entry.ID))

	err := t.qry.UpsertRunLog(ctx, db.UpsertRunLogParams{
		ID:                  entry.ID,
		StartedAt:           unix(entry.StartedAt),
		FinishedAt:          unix(entry.FinishedAt),
		FetchMode:           string(entry.Mode),
		Discovered:          int64(entry.Discovered),
		Succeeded:           int64(entry.Succeeded),
		Failed:              int64(entry.Failed),
		DocumentsDownloaded: int64(entry.DocumentsDownloaded),
		DocumentsFailed:     int64(entry.DocumentsFailed),
		DocumentsParsed:     int64(entry.DocumentsParsed),
		Status:              string(entry.Status),
		Notes:               entry.Notes,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

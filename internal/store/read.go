package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"tenderscrape/internal/db"
	"tenderscrape/internal/tender"
)

// StoredRecord is a persisted record with its row id.
type StoredRecord struct {
	ID     int64
	Mode   tender.FetchMode
	Record tender.Record
}

func recordFromRow(row db.Tender) (StoredRecord, error) {
	var nav tender.NavTokens
	err := json.Unmarshal([]byte(row.NavTokens), &nav)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("tender %s: nav tokens: %w", row.TenderID, err)
	}
	return StoredRecord{
		ID:   row.ID,
		Mode: tender.FetchMode(row.FetchMode),
		Record: tender.Record{
			TenderID:      row.TenderID,
			Department:    row.Department,
			NoticeNumber:  row.NoticeNumber,
			Category:      row.Category,
			Title:         row.Title,
			Value:         row.TenderValue,
			PublishedDate: row.PublishedDate,
			BidOpenDate:   row.BidOpenDate,
			BidCloseDate:  row.BidCloseDate,
			Nav:           nav,
			DetailURL:     row.DetailUrl,
			FetchedAt:     fromUnix(row.FetchedAt),
		},
	}, nil
}

func (s *Store) Record(ctx context.Context, tenderID string) (StoredRecord, error) {
	row, err := s.qry.GetTender(ctx, tenderID)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRecord{}, fmt.Errorf("tender %s: %w", tenderID, ErrNotFound)
	}
	if err != nil {
		return StoredRecord{}, err
	}
	return recordFromRow(row)
}

// Records lists every stored record in insertion order.
func (s *Store) Records(ctx context.Context) ([]StoredRecord, error) {
	rows, err := s.qry.ListTenders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoredRecord, 0, len(rows))
	for _, row := range rows {
		record, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Detail returns the stored sections of a record, false when none were stored.
func (s *Store) Detail(ctx context.Context, recordID int64) (tender.Detail, bool, error) {
	row, err := s.qry.GetTenderDetail(ctx, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return tender.Detail{}, false, nil
	}
	if err != nil {
		return tender.Detail{}, false, err
	}
	return tender.Detail{
		Eligibility:         row.Eligibility,
		GeneralTerms:        row.GeneralTerms,
		LegalTerms:          row.LegalTerms,
		TechnicalTerms:      row.TechnicalTerms,
		SubmissionProcedure: row.SubmissionProcedure,
	}, true, nil
}

func (s *Store) Documents(ctx context.Context, recordID int64) ([]tender.DocumentRef, error) {
	rows, err := s.qry.ListDocuments(ctx, recordID)
	if err != nil {
		return nil, err
	}
	out := make([]tender.DocumentRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, tender.DocumentRef{
			ID:        row.ID,
			URL:       row.Url,
			Kind:      tender.DocumentKind(row.Kind),
			Filename:  row.Filename,
			LocalPath: row.LocalPath,
			Status:    tender.DocumentStatus(row.Status),
			Size:      row.Size,
		})
	}
	return out, nil
}

// StoredField is an extracted field with the document it came from.
type StoredField struct {
	DocumentID int64
	Field      tender.ExtractedField
}

func (s *Store) ExtractedFields(ctx context.Context, recordID int64) ([]StoredField, error) {
	rows, err := s.qry.ListExtractedFields(ctx, recordID)
	if err != nil {
		return nil, err
	}
	out := make([]StoredField, 0, len(rows))
	for _, row := range rows {
		out = append(out, StoredField{
			DocumentID: row.DocumentID,
			Field: tender.ExtractedField{
				Name:   row.Name,
				Value:  row.Value,
				Type:   tender.FieldType(row.Type),
				Method: row.Method,
			},
		})
	}
	return out, nil
}

// DeleteRecord removes a record together with its detail, documents and
// fields. Run history is kept.
func (s *Store) DeleteRecord(ctx context.Context, tenderID string) error {
	n, err := s.qry.DeleteTender(ctx, tenderID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tender %s: %w", tenderID, ErrNotFound)
	}
	return nil
}

// RunLogs lists the most recent runs first.
func (s *Store) RunLogs(ctx context.Context, limit int) ([]tender.RunLog, error) {
	rows, err := s.qry.ListRunLogs(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]tender.RunLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, tender.RunLog{
			ID:                  row.ID,
			StartedAt:           fromUnix(row.StartedAt),
			FinishedAt:          fromUnix(row.FinishedAt),
			Mode:                tender.FetchMode(row.FetchMode),
			Discovered:          int(row.Discovered),
			Succeeded:           int(row.Succeeded),
			Failed:              int(row.Failed),
			DocumentsDownloaded: int(row.DocumentsDownloaded),
			DocumentsFailed:     int(row.DocumentsFailed),
			DocumentsParsed:     int(row.DocumentsParsed),
			Status:              tender.RunStatus(row.Status),
			Notes:               row.Notes,
		})
	}
	return out, nil
}

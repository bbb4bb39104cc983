package db

import (
	"context"
)

const upsertTender = `-- name: UpsertTender :one
insert into tenders (
    tender_id, department, notice_number, category, title, tender_value,
    published_date, bid_open_date, bid_close_date, nav_tokens, detail_url,
    fetch_mode, fetched_at, updated_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (tender_id) do update set
    department = excluded.department,
    notice_number = excluded.notice_number,
    category = excluded.category,
    title = excluded.title,
    tender_value = excluded.tender_value,
    published_date = excluded.published_date,
    bid_open_date = excluded.bid_open_date,
    bid_close_date = excluded.bid_close_date,
    nav_tokens = excluded.nav_tokens,
    detail_url = excluded.detail_url,
    fetch_mode = excluded.fetch_mode,
    fetched_at = excluded.fetched_at,
    updated_at = excluded.updated_at
returning id
`

type UpsertTenderParams struct {
	TenderID      string
	Department    string
	NoticeNumber  string
	Category      string
	Title         string
	TenderValue   string
	PublishedDate string
	BidOpenDate   string
	BidCloseDate  string
	NavTokens     string
	DetailUrl     string
	FetchMode     string
	FetchedAt     int64
	UpdatedAt     int64
}

func (q *Queries) UpsertTender(ctx context.Context, arg UpsertTenderParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertTender,
		arg.TenderID,
		arg.Department,
		arg.NoticeNumber,
		arg.Category,
		arg.Title,
		arg.TenderValue,
		arg.PublishedDate,
		arg.BidOpenDate,
		arg.BidCloseDate,
		arg.NavTokens,
		arg.DetailUrl,
		arg.FetchMode,
		arg.FetchedAt,
		arg.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getTender = `-- name: GetTender :one
select id, tender_id, department, notice_number, category, title, tender_value, published_date, bid_open_date, bid_close_date, nav_tokens, detail_url, fetch_mode, fetched_at, updated_at from tenders
where tender_id = ?
`

func (q *Queries) GetTender(ctx context.Context, tenderID string) (Tender, error) {
	row := q.db.QueryRowContext(ctx, getTender, tenderID)
	var i Tender
	err := row.Scan(
		&i.ID,
		&i.TenderID,
		&i.Department,
		&i.NoticeNumber,
		&i.Category,
		&i.Title,
		&i.TenderValue,
		&i.PublishedDate,
		&i.BidOpenDate,
		&i.BidCloseDate,
		&i.NavTokens,
		&i.DetailUrl,
		&i.FetchMode,
		&i.FetchedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTenders = `-- name: ListTenders :many
select id, tender_id, department, notice_number, category, title, tender_value, published_date, bid_open_date, bid_close_date, nav_tokens, detail_url, fetch_mode, fetched_at, updated_at from tenders
order by id
`

func (q *Queries) ListTenders(ctx context.Context) ([]Tender, error) {
	rows, err := q.db.QueryContext(ctx, listTenders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tender
	for rows.Next() {
		var i Tender
		if err := rows.Scan(
			&i.ID,
			&i.TenderID,
			&i.Department,
			&i.NoticeNumber,
			&i.Category,
			&i.Title,
			&i.TenderValue,
			&i.PublishedDate,
			&i.BidOpenDate,
			&i.BidCloseDate,
			&i.NavTokens,
			&i.DetailUrl,
			&i.FetchMode,
			&i.FetchedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTender = `-- name: DeleteTender :execrows
delete from tenders
where tender_id = ?
`

func (q *Queries) DeleteTender(ctx context.Context, tenderID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTender, tenderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertTenderDetail = `-- name: UpsertTenderDetail :exec
insert into tender_details (
    tender_id, eligibility, general_terms, legal_terms, technical_terms,
    submission_procedure, updated_at
) values (?, ?, ?, ?, ?, ?, ?)
on conflict (tender_id) do update set
    eligibility = excluded.eligibility,
    general_terms = excluded.general_terms,
    legal_terms = excluded.legal_terms,
    technical_terms = excluded.technical_terms,
    submission_procedure = excluded.submission_procedure,
    updated_at = excluded.updated_at
`

type UpsertTenderDetailParams struct {
	TenderID            int64
	Eligibility         string
	GeneralTerms        string
	LegalTerms          string
	TechnicalTerms      string
	SubmissionProcedure string
	UpdatedAt           int64
}

func (q *Queries) UpsertTenderDetail(ctx context.Context, arg UpsertTenderDetailParams) error {
	_, err := q.db.ExecContext(ctx, upsertTenderDetail,
		arg.TenderID,
		arg.Eligibility,
		arg.GeneralTerms,
		arg.LegalTerms,
		arg.TechnicalTerms,
		arg.SubmissionProcedure,
		arg.UpdatedAt,
	)
	return err
}

const getTenderDetail = `-- name: GetTenderDetail :one
select tender_id, eligibility, general_terms, legal_terms, technical_terms, submission_procedure, updated_at from tender_details
where tender_id = ?
`

func (q *Queries) GetTenderDetail(ctx context.Context, tenderID int64) (TenderDetail, error) {
	row := q.db.QueryRowContext(ctx, getTenderDetail, tenderID)
	var i TenderDetail
	err := row.Scan(
		&i.TenderID,
		&i.Eligibility,
		&i.GeneralTerms,
		&i.LegalTerms,
		&i.TechnicalTerms,
		&i.SubmissionProcedure,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertDocument = `-- name: UpsertDocument :one
insert into documents (
    tender_id, url, kind, filename, local_path, status, size, updated_at
) values (?, ?, ?, ?, ?, ?, ?, ?)
on conflict (tender_id, url) do update set
    kind = excluded.kind,
    filename = excluded.filename,
    local_path = excluded.local_path,
    status = excluded.status,
    size = excluded.size,
    updated_at = excluded.updated_at
returning id
`

type UpsertDocumentParams struct {
	TenderID  int64
	Url       string
	Kind      string
	Filename  string
	LocalPath string
	Status    string
	Size      int64
	UpdatedAt int64
}

func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertDocument,
		arg.TenderID,
		arg.Url,
		arg.Kind,
		arg.Filename,
		arg.LocalPath,
		arg.Status,
		arg.Size,
		arg.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateDocumentStatus = `-- name: UpdateDocumentStatus :execrows
update documents set
    status = ?,
    size = ?,
    updated_at = ?
where id = ?
`

type UpdateDocumentStatusParams struct {
	Status    string
	Size      int64
	UpdatedAt int64
	ID        int64
}

func (q *Queries) UpdateDocumentStatus(ctx context.Context, arg UpdateDocumentStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDocumentStatus,
		arg.Status,
		arg.Size,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDocuments = `-- name: ListDocuments :many
select id, tender_id, url, kind, filename, local_path, status, size, updated_at from documents
where tender_id = ?
order by id
`

func (q *Queries) ListDocuments(ctx context.Context, tenderID int64) ([]Document, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, tenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		var i Document
		if err := rows.Scan(
			&i.ID,
			&i.TenderID,
			&i.Url,
			&i.Kind,
			&i.Filename,
			&i.LocalPath,
			&i.Status,
			&i.Size,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertExtractedField = `-- name: UpsertExtractedField :exec
insert into extracted_fields (
    tender_id, document_id, name, value, type, method, extracted_at
) values (?, ?, ?, ?, ?, ?, ?)
on conflict (tender_id, document_id, name) do update set
    value = excluded.value,
    type = excluded.type,
    method = excluded.method,
    extracted_at = excluded.extracted_at
`

type UpsertExtractedFieldParams struct {
	TenderID    int64
	DocumentID  int64
	Name        string
	Value       string
	Type        string
	Method      string
	ExtractedAt int64
}

func (q *Queries) UpsertExtractedField(ctx context.Context, arg UpsertExtractedFieldParams) error {
	_, err := q.db.ExecContext(ctx, upsertExtractedField,
		arg.TenderID,
		arg.DocumentID,
		arg.Name,
		arg.Value,
		arg.Type,
		arg.Method,
		arg.ExtractedAt,
	)
	return err
}

const listExtractedFields = `-- name: ListExtractedFields :many
select id, tender_id, document_id, name, value, type, method, extracted_at from extracted_fields
where tender_id = ?
order by document_id, id
`

func (q *Queries) ListExtractedFields(ctx context.Context, tenderID int64) ([]ExtractedField, error) {
	rows, err := q.db.QueryContext(ctx, listExtractedFields, tenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExtractedField
	for rows.Next() {
		var i ExtractedField
		if err := rows.Scan(
			&i.ID,
			&i.TenderID,
			&i.DocumentID,
			&i.Name,
			&i.Value,
			&i.Type,
			&i.Method,
			&i.ExtractedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertRunLog = `-- name: UpsertRunLog :exec
insert into run_logs (
    id, started_at, finished_at, fetch_mode, discovered, succeeded, failed,
    documents_downloaded, documents_failed, documents_parsed, status, notes
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (id) do update set
    finished_at = excluded.finished_at,
    fetch_mode = excluded.fetch_mode,
    discovered = excluded.discovered,
    succeeded = excluded.succeeded,
    failed = excluded.failed,
    documents_downloaded = excluded.documents_downloaded,
    documents_failed = excluded.documents_failed,
    documents_parsed = excluded.documents_parsed,
    status = excluded.status,
    notes = excluded.notes
`

type UpsertRunLogParams struct {
	ID                  string
	StartedAt           int64
	FinishedAt          int64
	FetchMode           string
	Discovered          int64
	Succeeded           int64
	Failed              int64
	DocumentsDownloaded int64
	DocumentsFailed     int64
	DocumentsParsed     int64
	Status              string
	Notes               string
}

func (q *Queries) UpsertRunLog(ctx context.Context, arg UpsertRunLogParams) error {
	_, err := q.db.ExecContext(ctx, upsertRunLog,
		arg.ID,
		arg.StartedAt,
		arg.FinishedAt,
		arg.FetchMode,
		arg.Discovered,
		arg.Succeeded,
		arg.Failed,
		arg.DocumentsDownloaded,
		arg.DocumentsFailed,
		arg.DocumentsParsed,
		arg.Status,
		arg.Notes,
	)
	return err
}

const listRunLogs = `-- name: ListRunLogs :many
select id, started_at, finished_at, fetch_mode, discovered, succeeded, failed, documents_downloaded, documents_failed, documents_parsed, status, notes from run_logs
order by started_at desc, id
limit ?
`

func (q *Queries) ListRunLogs(ctx context.Context, limit int64) ([]RunLog, error) {
	rows, err := q.db.QueryContext(ctx, listRunLogs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunLog
	for rows.Next() {
		var i RunLog
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.FetchMode,
			&i.Discovered,
			&i.Succeeded,
			&i.Failed,
			&i.DocumentsDownloaded,
			&i.DocumentsFailed,
			&i.DocumentsParsed,
			&i.Status,
			&i.Notes,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

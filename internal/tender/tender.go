// Package tender holds the domain types that flow through a scrape, from a
// listing row to the fields extracted out of its attachments.
package tender

import (
	"errors"
	"strings"
	"tenderscrape/internal/scrapeerr"
	"time"
)

type FetchMode string

const (
	FetchModeAPI     FetchMode = "api"
	FetchModeBrowser FetchMode = "browser"
)

// NavTokens are the arguments of the javascript action on a listing row that
// identify its detail view.
type NavTokens []string

// Record is one listing row. TenderID is the natural key.
type Record struct {
	TenderID      string    `csv:"tender_id"`
	Department    string    `csv:"department"`
	NoticeNumber  string    `csv:"notice_number"`
	Category      string    `csv:"category"`
	Title         string    `csv:"title"`
	Value         string    `csv:"value"`
	PublishedDate string    `csv:"published_date"`
	BidOpenDate   string    `csv:"bid_open_date"`
	BidCloseDate  string    `csv:"bid_close_date"`
	Nav           NavTokens `csv:"-"`
	// DetailURL is set when the detail location is known up front.
	DetailURL string    `csv:"detail_url"`
	FetchedAt time.Time `csv:"fetched_at"`
}

var errMissing = errors.New("required value is empty")

// Validate checks the required fields, row is the position in the listing
// and is only used for reporting.
func (r Record) Validate(row int) error {
	if strings.TrimSpace(r.TenderID) == "" {
		return scrapeerr.Validation("tender_id", row, errMissing)
	}
	return nil
}

type Section string

const (
	SectionEligibility         Section = "eligibility"
	SectionGeneralTerms        Section = "general_terms"
	SectionLegalTerms          Section = "legal_terms"
	SectionTechnicalTerms      Section = "technical_terms"
	SectionSubmissionProcedure Section = "submission_procedure"
)

var Sections = []Section{
	SectionEligibility,
	SectionGeneralTerms,
	SectionLegalTerms,
	SectionTechnicalTerms,
	SectionSubmissionProcedure,
}

// Detail is the named text sections of a detail view, a missing section is
// the empty string.
type Detail struct {
	Eligibility         string
	GeneralTerms        string
	LegalTerms          string
	TechnicalTerms      string
	SubmissionProcedure string
}

func (d *Detail) Set(section Section, text string) {
	switch section {
	case SectionEligibility:
		d.Eligibility = text
	case SectionGeneralTerms:
		d.GeneralTerms = text
	case SectionLegalTerms:
		d.LegalTerms = text
	case SectionTechnicalTerms:
		d.TechnicalTerms = text
	case SectionSubmissionProcedure:
		d.SubmissionProcedure = text
	}
}

func (d Detail) Get(section Section) string {
	switch section {
	case SectionEligibility:
		return d.Eligibility
	case SectionGeneralTerms:
		return d.GeneralTerms
	case SectionLegalTerms:
		return d.LegalTerms
	case SectionTechnicalTerms:
		return d.TechnicalTerms
	case SectionSubmissionProcedure:
		return d.SubmissionProcedure
	}
	return ""
}

func (d Detail) Empty() bool {
	return d == Detail{}
}

// DetailPage is a rendered detail view as returned by either client.
type DetailPage struct {
	URL  string
	HTML string
}

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// PageQuery asks for one window of the listing. The zero value of the sort
// fields sorts ascending on the first column.
type PageQuery struct {
	Offset   int
	PageSize int
	// Search is the global search term, empty for everything.
	Search     string
	SortColumn int
	SortDir    SortDir
	// Filters are per column search terms keyed by column index.
	Filters map[int]string
}

// Listing is one parsed page of the listing. Invalid holds a ValidationError
// for every row that was dropped.
type Listing struct {
	Records []Record
	Total   int
	Invalid []error
}

// Rows is the number of rows the page carried, valid or not.
func (l Listing) Rows() int {
	return len(l.Records) + len(l.Invalid)
}

package detail

import (
	"context"
	"errors"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"testing"

	"github.com/stretchr/testify/require"
)

const detailPage = `<html><head><title>Tender</title></head><body>
<h2>Tender Details</h2>
<table><tr><td>Tender ID</td><td>T-1</td></tr></table>
<h3>1. Eligibility Criteria</h3>
<p>Registered contractors in class A.</p>
<p>Turnover above 1 crore.</p>
<h3>General Terms and Conditions</h3>
<p>Bids valid for 90 days.</p>
<h3>Technical Specifications:</h3>
<ul><li>IS 456 concrete</li></ul>
<p><b>Submission Procedure:</b> Submit online before the deadline.</p>
<div id="tenderDocuments">
	<h3>Documents</h3>
	<a href="/files/notice.pdf">Tender Notice</a>
	<a href="/files/boq.xlsx">BOQ</a>
	<a href="Download?id=9" type="application/msword">Specs</a>
	<a href="javascript:void(0)">Print</a>
	<a href="/files/notice.pdf">Tender Notice</a>
</div>
<a href="/help.html">Help</a>
</body></html>`

type fakeSource struct {
	page tender.DetailPage
	mode tender.FetchMode
	err  error
}

func (f fakeSource) FetchDetail(context.Context, tender.Record) (tender.DetailPage, tender.FetchMode, error) {
	return f.page, f.mode, f.err
}

func TestExtract(t *testing.T) {
	source := fakeSource{
		page: tender.DetailPage{URL: "https://portal.test/ViewDetailTenderDetail.html?tenderNo=T-1", HTML: detailPage},
		mode: tender.FetchModeAPI,
	}
	extractor := NewExtractor(source, nil, telemetry.NewRecorder())

	result, err := extractor.Extract(context.Background(), tender.Record{TenderID: "T-1"})
	require.NoError(t, err)
	require.Equal(t, tender.FetchModeAPI, result.Mode)

	require.Equal(t, tender.Detail{
		Eligibility:         "Registered contractors in class A.\nTurnover above 1 crore.",
		GeneralTerms:        "Bids valid for 90 days.",
		TechnicalTerms:      "IS 456 concrete",
		SubmissionProcedure: "Submit online before the deadline.",
	}, result.Detail)

	require.Equal(t, []tender.DocumentRef{
		{
			URL:      "https://portal.test/files/notice.pdf",
			Kind:     tender.KindPDF,
			Filename: "T_1_Tender_Notice.pdf",
			Status:   tender.StatusPending,
		},
		{
			URL:      "https://portal.test/files/boq.xlsx",
			Kind:     tender.KindSpreadsheet,
			Filename: "T_1_BOQ.xlsx",
			Status:   tender.StatusPending,
		},
		{
			URL:      "https://portal.test/Download?id=9",
			Kind:     tender.KindWord,
			Filename: "T_1_Specs.docx",
			Status:   tender.StatusPending,
		},
	}, result.Documents)
}

func TestExtractWithoutDocumentRegion(t *testing.T) {
	extractor := NewExtractor(fakeSource{}, nil, telemetry.NewRecorder())
	result, err := extractor.Parse(context.Background(), tender.Record{TenderID: "X"}, tender.DetailPage{
		URL: "https://portal.test/detail",
		HTML: `<html><body>
			<a href="/a/download/77">Download</a>
			<a href="/a/Download/78">Download</a>
			<a href="/about.html">About</a>
			<a href="/a/rates.csv">Rates</a>
			<p>Legal Terms: Disputes under Hyderabad jurisdiction.</p>
		</body></html>`,
	})
	require.NoError(t, err)
	require.Equal(t, "Disputes under Hyderabad jurisdiction.", result.Detail.LegalTerms)

	require.Len(t, result.Documents, 3)
	require.Equal(t, tender.KindUnknown, result.Documents[0].Kind)
	require.Equal(t, "X_77", result.Documents[0].Filename)
	require.Equal(t, "X_78", result.Documents[1].Filename)
	require.Equal(t, tender.KindCSV, result.Documents[2].Kind)
	require.Equal(t, "X_Rates.csv", result.Documents[2].Filename)
}

func TestDuplicateFilenamesAreNumbered(t *testing.T) {
	extractor := NewExtractor(fakeSource{}, nil, telemetry.NewRecorder())
	result, err := extractor.Parse(context.Background(), tender.Record{TenderID: "D"}, tender.DetailPage{
		URL: "https://portal.test/detail",
		HTML: `<div class="attachments">
			<a href="/one/corrigendum.pdf">Corrigendum</a>
			<a href="/two/corrigendum.pdf">Corrigendum</a>
		</div>`,
	})
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	require.Equal(t, "D_Corrigendum.pdf", result.Documents[0].Filename)
	require.Equal(t, "D_Corrigendum_2.pdf", result.Documents[1].Filename)
}

func TestExtractPassesFetchErrorsThrough(t *testing.T) {
	cause := scrapeerr.Network("portal.fetch-detail", errors.New("reset"))
	extractor := NewExtractor(fakeSource{err: cause, mode: tender.FetchModeBrowser}, nil, telemetry.NewRecorder())

	result, err := extractor.Extract(context.Background(), tender.Record{TenderID: "T"})
	require.Same(t, cause, err)
	require.Equal(t, tender.FetchModeBrowser, result.Mode)
}

func TestParseSectionsFirstOccurrenceWins(t *testing.T) {
	detail := ParseSections([]string{
		"Eligibility",
		"first",
		"Legal Terms",
		"law",
		"Eligibility",
		"second",
	}, DefaultSectionLabels())
	require.Equal(t, "first", detail.Eligibility)
	require.Equal(t, "law", detail.LegalTerms)
}

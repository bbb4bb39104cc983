package tender

import (
	"net/url"
	"tenderscrape/internal/scrapeerr"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	require.NoError(t, Record{TenderID: "T-1"}.Validate(0))

	err := Record{TenderID: "  ", Title: "Road works"}.Validate(4)
	require.Error(t, err)
	require.Equal(t, scrapeerr.KindValidation, scrapeerr.Classify(err))
}

func TestInferKind(t *testing.T) {
	mustParse := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u
	}

	table := []struct {
		link     string
		declared string
		text     string
		expected DocumentKind
	}{
		{link: "https://portal/files/notice.PDF", expected: KindPDF},
		{link: "https://portal/files/boq.xlsx", expected: KindSpreadsheet},
		{link: "https://portal/files/terms.doc", expected: KindWord},
		{link: "https://portal/files/rates.csv", expected: KindCSV},
		{link: "https://portal/Download?file=spec.docx", expected: KindWord},
		{link: "https://portal/Download?id=7", declared: "application/pdf", expected: KindPDF},
		{link: "https://portal/Download?id=8", text: "BOQ.xls", expected: KindSpreadsheet},
		{link: "https://portal/Download?id=9", text: "View", expected: KindUnknown},
	}
	for _, test := range table {
		require.Equal(t, test.expected, InferKind(mustParse(test.link), test.declared, test.text), test.link)
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("IST", 5*60*60+30*60)
	for _, s := range []string{"05-03-2024", "05/03/2024", "2024-03-05", "05-03-24", "05/03/24"} {
		got, ok := ParseDate(s, loc)
		require.True(t, ok, s)
		require.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, loc), got, s)
	}

	_, ok := ParseDate("March 5th", loc)
	require.False(t, ok)
	require.True(t, ValidDate("31-12-2024 17:00"))
	require.False(t, ValidDate("31-13-2024"))
}

func TestParseAmount(t *testing.T) {
	table := []struct {
		in       string
		expected float64
		ok       bool
	}{
		{in: "Rs. 1,25,000.00", expected: 125000, ok: true},
		{in: "INR 5000", expected: 5000, ok: true},
		{in: "₹ 2,500/-", expected: 2500, ok: true},
		{in: "NIL", ok: false},
		{in: "", ok: false},
	}
	for _, test := range table {
		got, ok := ParseAmount(test.in)
		require.Equal(t, test.ok, ok, test.in)
		require.Equal(t, test.expected, got, test.in)
	}
}

func TestRunLogSuccessRate(t *testing.T) {
	require.Equal(t, 0.0, RunLog{}.SuccessRate())
	require.Equal(t, 50.0, RunLog{Discovered: 4, Succeeded: 2}.SuccessRate())
}

func TestRecordWarnings(t *testing.T) {
	complete := Record{
		TenderID:      "T-1",
		Department:    "Irrigation",
		Title:         "Canal lining",
		Value:         "Rs. 4,50,000",
		PublishedDate: "01-03-2024",
		BidCloseDate:  "15/03/2024 17:00",
	}
	require.Empty(t, complete.Warnings(0))

	partial := Record{TenderID: "T-2", Value: "NIL", BidOpenDate: "next week"}
	warnings := partial.Warnings(3)
	require.Len(t, warnings, 4)

	var fields []string
	for _, w := range warnings {
		var verr *scrapeerr.ValidationError
		require.ErrorAs(t, w, &verr)
		require.Equal(t, 3, verr.Row)
		fields = append(fields, verr.Field)
	}
	require.Equal(t, []string{"title", "department", "bid_open_date", "value"}, fields)
}

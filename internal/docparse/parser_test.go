package docparse

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Notice Inviting Tender</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Earnest Money </w:t></w:r><w:r><w:t>Deposit: Rs. 75,000</w:t></w:r></w:p>
<w:p><w:r><w:t>Tender</w:t></w:r><w:r><w:tab/><w:t>Fee: 1,500</w:t></w:r></w:p>
</w:body>
</w:document>`

func writeDocx(t *testing.T, path string) {
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	archive := zip.NewWriter(file)
	w, err := archive.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, archive.Close())
}

func writeXlsx(t *testing.T, path string) {
	book := excelize.NewFile()
	defer book.Close()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "Item"))
	require.NoError(t, book.SetCellValue("Sheet1", "B1", "Value"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "Estimated Cost"))
	require.NoError(t, book.SetCellValue("Sheet1", "B2", "Rs. 12,50,000"))
	require.NoError(t, book.SaveAs(path))
}

func downloaded(path string, kind tender.DocumentKind) tender.DocumentRef {
	return tender.DocumentRef{
		URL:       "http://portal/" + filepath.Base(path),
		Kind:      kind,
		LocalPath: path,
		Status:    tender.StatusDownloaded,
	}
}

func TestParse(t *testing.T) {
	dir := t.TempDir()
	docx := filepath.Join(dir, "notice.docx")
	writeDocx(t, docx)
	xlsx := filepath.Join(dir, "boq.xlsx")
	writeXlsx(t, xlsx)
	csvPath := filepath.Join(dir, "schedule.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Milestone,Date\nBid Closing Date,20-03-2024\n"), 0666))

	parser := NewParser(DefaultPatterns(), telemetry.NewRecorder())

	result, err := parser.Parse(context.Background(), downloaded(docx, tender.KindWord))
	require.NoError(t, err)
	require.Equal(t, "Notice Inviting Tender\nEarnest Money Deposit: Rs. 75,000\nTender\tFee: 1,500", result.Text)
	values := fieldValues(result.Fields)
	require.Equal(t, "75,000", values["emd"])
	require.Equal(t, "1,500", values["tender_fee"])

	result, err = parser.Parse(context.Background(), downloaded(xlsx, tender.KindSpreadsheet))
	require.NoError(t, err)
	require.Equal(t, "Item\tValue\nEstimated Cost\tRs. 12,50,000", result.Text)
	require.Equal(t, "12,50,000", fieldValues(result.Fields)["estimated_cost"])

	result, err = parser.Parse(context.Background(), downloaded(csvPath, tender.KindCSV))
	require.NoError(t, err)
	require.Equal(t, "Milestone\tDate\nBid Closing Date\t20-03-2024", result.Text)
	require.Equal(t, "20-03-2024", fieldValues(result.Fields)["bid_close_date"])
}

func TestParseUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(corrupt, []byte("%PDF-1.4 truncated"), 0666))
	legacy := filepath.Join(dir, "old.doc")
	require.NoError(t, os.WriteFile(legacy, []byte("\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1rest of the file"), 0666))
	unknown := filepath.Join(dir, "readme")
	require.NoError(t, os.WriteFile(unknown, []byte("EMD: 100"), 0666))

	recorder := telemetry.NewRecorder()
	parser := NewParser(DefaultPatterns(), recorder)

	cases := []tender.DocumentRef{
		downloaded(corrupt, tender.KindPDF),
		downloaded(legacy, tender.KindWord),
		downloaded(legacy, tender.KindSpreadsheet),
		downloaded(unknown, tender.KindUnknown),
	}
	for _, doc := range cases {
		result, err := parser.Parse(context.Background(), doc)
		require.NoError(t, err, doc.LocalPath)
		require.Empty(t, result.Text)
		require.Empty(t, result.Fields)
	}
	warnings := 0
	for _, report := range recorder.Reports() {
		if report.Level == telemetry.LevelWarning && strings.HasSuffix(report.ID, report_parser_parse) {
			warnings++
		}
	}
	require.Equal(t, len(cases), warnings)
}

func TestParseNotDownloaded(t *testing.T) {
	parser := NewParser(DefaultPatterns(), telemetry.NewRecorder())
	result, err := parser.Parse(context.Background(), tender.DocumentRef{
		URL:    "http://portal/missing.pdf",
		Kind:   tender.KindPDF,
		Status: tender.StatusFailed,
	})
	require.Error(t, err)
	require.Equal(t, scrapeerr.KindParse, scrapeerr.Classify(err))
	require.Empty(t, result.Text)
}

func TestParseCustomHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("ignored"), 0666))

	recorder := telemetry.NewRecorder()
	parser := NewParser(DefaultPatterns(), recorder)
	parser.Handle(tender.KindPDF, func(ctx context.Context, path string) (string, error) {
		return "  EMD Rs 9,999  ", nil
	})
	parser.Handle(tender.KindSpreadsheet, func(ctx context.Context, path string) (string, error) {
		panic("boom")
	})

	result, err := parser.Parse(context.Background(), downloaded(path, tender.KindPDF))
	require.NoError(t, err)
	require.Equal(t, "EMD Rs 9,999", result.Text)
	require.Equal(t, "9,999", fieldValues(result.Fields)["emd"])

	result, err = parser.Parse(context.Background(), downloaded(path, tender.KindSpreadsheet))
	require.NoError(t, err)
	require.Empty(t, result.Text)
	require.Contains(t, recorder.String(), "boom")
}
